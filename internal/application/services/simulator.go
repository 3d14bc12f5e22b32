package services

import (
	"context"
	"fmt"

	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/invocation"
	"github.com/permkit-dev/permkit/internal/domain/strategy"
	"github.com/permkit-dev/permkit/internal/infrastructure/config"
	"github.com/permkit-dev/permkit/internal/infrastructure/engine"
	"github.com/permkit-dev/permkit/internal/infrastructure/platform"
)

// CallOutcome reports what happened to one gated call in a scenario.
type CallOutcome struct {
	Step         int
	Host         string
	Capabilities []string
	Strategy     string
	// Invoked is true once the intercepted call actually ran.
	Invoked bool
	// Error holds the synchronous begin failure, if any.
	Error string
}

// ScenarioReport is the result of a full scenario run.
type ScenarioReport struct {
	Calls []*CallOutcome
	// Abandoned counts grant requests still outstanding when the run
	// ended, typically because their host was destroyed first.
	Abandoned int
}

// ScenarioRunner executes a scenario against a fresh registry, coordinator,
// and simulated authority.
type ScenarioRunner struct {
	// fallback decides calls that carry no scripted decisions.
	fallback platform.DecisionFunc
}

// RunnerOption configures a ScenarioRunner.
type RunnerOption func(*ScenarioRunner)

// WithFallbackDecision sets the policy for calls without scripted decisions.
// The default denies everything undecided.
func WithFallbackDecision(fn platform.DecisionFunc) RunnerOption {
	return func(r *ScenarioRunner) { r.fallback = fn }
}

// NewScenarioRunner creates a runner.
func NewScenarioRunner(opts ...RunnerOption) *ScenarioRunner {
	r := &ScenarioRunner{fallback: platform.DenyAll}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the scenario through the engine step by step and reports the
// outcome of every gated call.
func (r *ScenarioRunner) Run(ctx context.Context, scenario *config.Scenario) (*ScenarioReport, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	registry := NewStrategyRegistry()
	for _, def := range scenario.Strategies {
		kind, err := hosts.ParseKind(def.Kind)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", def.Name, err)
		}
		s, err := strategy.NewExpr(def.Name, kind, def.Rule)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	if scenario.DefaultStrategy != "" {
		if err := registry.SetDefaultStrategyName(scenario.DefaultStrategy); err != nil {
			return nil, err
		}
	}

	grants := make([]capabilities.ID, len(scenario.Grants))
	for i, g := range scenario.Grants {
		grants[i] = capabilities.ID(g)
	}
	authority := platform.NewAuthority(platform.WithStandingGrants(grants...))

	coord := engine.NewCoordinator(registry, authority, authority, engine.Config{
		RequestMissingOnly: scenario.RequestMissingOnly,
	})
	authority.SetHandler(coord)
	if err := authority.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = authority.Close() // Best-effort cleanup
	}()

	hostsByID := make(map[string]*platform.SimulatedHost, len(scenario.Hosts))
	for _, def := range scenario.Hosts {
		kind, err := hosts.ParseKind(def.Kind)
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", def.ID, err)
		}
		hostsByID[def.ID] = platform.NewSimulatedHost(def.ID, kind)
	}

	report := &ScenarioReport{}

	for i, step := range scenario.Steps {
		switch {
		case step.Call != nil:
			outcome := r.runCall(i, step.Call, registry, authority, coord, hostsByID)
			report.Calls = append(report.Calls, outcome)

		case step.Destroy != "":
			hostsByID[step.Destroy].Destroy()
			coord.OnHostDestroyed(step.Destroy)

		case step.Recreate != "":
			next := hostsByID[step.Recreate].Recreate()
			if err := coord.OnHostRecreated(step.Recreate, next); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			hostsByID[step.Recreate] = next

		case step.Flush:
			authority.Flush()
		}

		// Serialize: every released delivery lands before the next step.
		authority.Drain()
	}

	// Anything still held at the end stays undelivered; release it so the
	// coordinator can drop entries for dead hosts, then count leftovers.
	authority.Flush()
	authority.Drain()
	report.Abandoned = coord.PendingCount()

	return report, nil
}

func (r *ScenarioRunner) runCall(
	step int,
	call *config.CallStep,
	registry *StrategyRegistry,
	authority *platform.Authority,
	coord *engine.Coordinator,
	hostsByID map[string]*platform.SimulatedHost,
) *CallOutcome {
	outcome := &CallOutcome{
		Step:         step,
		Host:         call.Host,
		Capabilities: call.Capabilities,
		Strategy:     call.Strategy,
	}
	if outcome.Strategy == "" {
		outcome.Strategy = registry.DefaultStrategyName()
	}

	if len(call.Decisions) > 0 {
		decisions := make(map[capabilities.ID]bool, len(call.Decisions))
		for capID, verb := range call.Decisions {
			decisions[capabilities.ID(capID)] = verb == "grant"
		}
		authority.SetDecision(platform.Scripted(decisions))
	} else {
		authority.SetDecision(r.fallback)
	}

	set, err := capabilities.NewSetFromStrings(call.Capabilities)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	host := hostsByID[call.Host]
	inv, err := invocation.NewPendingInvocation(host, func() error {
		outcome.Invoked = true
		return nil
	}, set, call.Strategy)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	// Hold applies to this call's delivery only; the request is launched
	// synchronously inside Begin, so the window closes right after.
	if call.Hold {
		authority.SetHold(true)
		defer authority.SetHold(false)
	}

	if err := coord.Begin(inv); err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}
