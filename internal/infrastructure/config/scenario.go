// Package config provides infrastructure for loading simulation scenarios.
// This package handles YAML parsing, file I/O, and schema validation.
package config

import (
	"fmt"
	"strings"

	"github.com/permkit-dev/permkit/internal/domain/hosts"
)

// Scenario describes a full simulation: the hosts, the strategies, the
// standing grants, and an ordered list of steps to drive through the engine.
type Scenario struct {
	Version            int           `yaml:"version"`
	DefaultStrategy    string        `yaml:"default_strategy,omitempty"`
	RequestMissingOnly bool          `yaml:"request_missing_only,omitempty"`
	Strategies         []StrategyDef `yaml:"strategies,omitempty"`
	Hosts              []HostDef     `yaml:"hosts"`
	Grants             []string      `yaml:"grants,omitempty"`
	Steps              []Step        `yaml:"steps"`
}

// StrategyDef declares an expression strategy to register before the run.
type StrategyDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
	Rule string `yaml:"rule"`
}

// HostDef declares a lifecycle-bound host participating in the scenario.
type HostDef struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

// Step is one scenario action. Exactly one of the fields is set.
type Step struct {
	Call     *CallStep `yaml:"call,omitempty"`
	Destroy  string    `yaml:"destroy,omitempty"`
	Recreate string    `yaml:"recreate,omitempty"`
	Flush    bool      `yaml:"flush,omitempty"`
}

// CallStep is a capability-gated call. Decisions script the authority's
// answer per capability ("grant" or "deny"); capabilities without an entry
// are denied. Hold defers the result delivery until a later flush step.
type CallStep struct {
	Host         string            `yaml:"host"`
	Capabilities []string          `yaml:"capabilities"`
	Strategy     string            `yaml:"strategy,omitempty"`
	Hold         bool              `yaml:"hold,omitempty"`
	Decisions    map[string]string `yaml:"decisions,omitempty"`
}

// Validate performs semantic validation beyond the schema: host references,
// kind names, and decision verbs must all resolve.
func (s *Scenario) Validate() error {
	var errs []string

	if s.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported scenario version %d", s.Version))
	}

	hostIDs := make(map[string]bool, len(s.Hosts))
	for _, h := range s.Hosts {
		if hostIDs[h.ID] {
			errs = append(errs, fmt.Sprintf("duplicate host id %q", h.ID))
		}
		hostIDs[h.ID] = true

		kind, err := hosts.ParseKind(h.Kind)
		if err != nil {
			errs = append(errs, fmt.Sprintf("host %q: %v", h.ID, err))
		} else if !kind.IsConcrete() {
			errs = append(errs, fmt.Sprintf("host %q: kind must be screen or fragment", h.ID))
		}
	}

	strategyNames := make(map[string]bool, len(s.Strategies))
	for _, def := range s.Strategies {
		if strategyNames[def.Name] {
			errs = append(errs, fmt.Sprintf("duplicate strategy name %q", def.Name))
		}
		strategyNames[def.Name] = true

		if _, err := hosts.ParseKind(def.Kind); err != nil {
			errs = append(errs, fmt.Sprintf("strategy %q: %v", def.Name, err))
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, hostIDs); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("scenario validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateStep(i int, step Step, hostIDs map[string]bool) error {
	set := 0
	if step.Call != nil {
		set++
	}
	if step.Destroy != "" {
		set++
	}
	if step.Recreate != "" {
		set++
	}
	if step.Flush {
		set++
	}
	if set != 1 {
		return fmt.Errorf("step %d: exactly one of call, destroy, recreate, flush must be set", i)
	}

	switch {
	case step.Call != nil:
		call := step.Call
		if !hostIDs[call.Host] {
			return fmt.Errorf("step %d: call references unknown host %q", i, call.Host)
		}
		if len(call.Capabilities) == 0 {
			return fmt.Errorf("step %d: call needs at least one capability", i)
		}
		for capID, verb := range call.Decisions {
			if verb != "grant" && verb != "deny" {
				return fmt.Errorf("step %d: decision for %q must be grant or deny, got %q", i, capID, verb)
			}
		}
	case step.Destroy != "":
		if !hostIDs[step.Destroy] {
			return fmt.Errorf("step %d: destroy references unknown host %q", i, step.Destroy)
		}
	case step.Recreate != "":
		if !hostIDs[step.Recreate] {
			return fmt.Errorf("step %d: recreate references unknown host %q", i, step.Recreate)
		}
	}
	return nil
}
