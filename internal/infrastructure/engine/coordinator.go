// Package engine coordinates grant requests for capability-gated calls.
//
// The coordinator is the state machine behind every gated call: it checks
// current grant status, short-circuits when everything is already granted,
// launches an asynchronous grant request otherwise, correlates the eventual
// result back to the pending invocation, consults the selected strategy, and
// conditionally re-invokes the intercepted call.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/permkit-dev/permkit/internal/application/errors"
	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/invocation"
	"github.com/permkit-dev/permkit/internal/domain/strategy"
	"github.com/permkit-dev/permkit/internal/domain/values"
)

// StrategyResolver resolves a strategy selector to a strategy instance.
type StrategyResolver interface {
	Resolve(name string) (strategy.RequestStrategy, error)
	ResolveDefault() (strategy.RequestStrategy, error)
}

// PermissionChecker reports the current grant status of each capability for
// a host. Stateless and side-effect-free; results are never cached beyond a
// single check.
type PermissionChecker interface {
	CheckAll(h hosts.Host, set capabilities.Set) (map[capabilities.ID]capabilities.GrantStatus, error)
}

// GrantRequester launches the platform-level asynchronous grant request.
// The platform fires a callback later with the correlation ID and the result.
type GrantRequester interface {
	RequestGrant(h hosts.Host, set capabilities.Set, id values.CorrelationID) error
}

// ResultHandler receives asynchronous grant results. The coordinator
// implements it; platform collaborators call it.
type ResultHandler interface {
	HandleResult(id values.CorrelationID, res capabilities.Result) error
}

// LifecycleBridge receives host lifecycle events so in-flight requests can
// be abandoned or rebound.
type LifecycleBridge interface {
	OnHostDestroyed(hostID string)
	OnHostRecreated(hostID string, replacement hosts.Host) error
}

// pendingEntry tracks one outstanding grant request: the invocation, the
// strategy resolved at interception time, and the capabilities that were
// already granted when the request was launched.
type pendingEntry struct {
	inv        *invocation.PendingInvocation
	strat      strategy.RequestStrategy
	preGranted []capabilities.ID
}

// Coordinator is the request orchestration engine. Mutation of the
// correlation table is mutually exclusive; invocations never run under the
// table lock.
type Coordinator struct {
	resolver  StrategyResolver
	checker   PermissionChecker
	requester GrantRequester
	config    Config

	mu      sync.Mutex
	pending map[values.CorrelationID]*pendingEntry
}

// Interface compliance
var (
	_ ResultHandler   = (*Coordinator)(nil)
	_ LifecycleBridge = (*Coordinator)(nil)
)

// NewCoordinator creates a coordinator wired to its collaborators.
func NewCoordinator(resolver StrategyResolver, checker PermissionChecker, requester GrantRequester, cfg Config) *Coordinator {
	return &Coordinator{
		resolver:  resolver,
		checker:   checker,
		requester: requester,
		config:    cfg,
		pending:   make(map[values.CorrelationID]*pendingEntry),
	}
}

// Begin runs the synchronous half of the state machine for an intercepted
// call. Configuration errors (unknown strategy, incompatible strategy,
// invalid host) abort the call before any grant request is issued. When a
// request is launched, Begin returns immediately; the intercepted call runs
// later, from within the result callback, or not at all.
func (c *Coordinator) Begin(inv *invocation.PendingInvocation) error {
	strat, err := c.resolveStrategy(inv.StrategyName())
	if err != nil {
		return err
	}

	host, alive := inv.Host()
	if !alive {
		return apperrors.NewInvalidHostError(inv.HostID(), "host destroyed before permission check")
	}

	if !strat.HostKind().Accepts(host.Kind()) {
		return apperrors.NewIncompatibleStrategyError(strat.Name(), strat.HostKind(), host.Kind())
	}

	statuses, err := c.checker.CheckAll(host, inv.Requested())
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}

	var preGranted, missing []capabilities.ID
	for _, id := range inv.Requested().IDs() {
		if statuses[id] == capabilities.StatusGranted {
			preGranted = append(preGranted, id)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return c.shortCircuit(inv, strat, host)
	}

	toRequest := inv.Requested()
	if c.config.RequestMissingOnly {
		subset, err := capabilities.NewSet(missing...)
		if err != nil {
			return fmt.Errorf("building missing-capability subset: %w", err)
		}
		toRequest = subset
	}

	id := inv.CorrelationID()
	c.mu.Lock()
	c.pending[id] = &pendingEntry{inv: inv, strat: strat, preGranted: preGranted}
	c.mu.Unlock()

	if err := c.requester.RequestGrant(host, toRequest, id); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("grant request failed: %w", err)
	}

	slog.Debug("awaiting grant result",
		"correlation_id", id,
		"host", host.ID(),
		"strategy", strat.Name(),
		"requested", toRequest.String())
	return nil
}

// shortCircuit handles the fully-granted path: no platform request, a
// synthesized all-granted result, and the strategy still gets its hook.
func (c *Coordinator) shortCircuit(inv *invocation.PendingInvocation, strat strategy.RequestStrategy, host hosts.Host) error {
	res := capabilities.AllGranted(inv.Requested())
	slog.Debug("all capabilities already granted",
		"correlation_id", inv.CorrelationID(),
		"host", host.ID(),
		"strategy", strat.Name())

	if !strat.OnPermissionsResult(host, res) {
		return nil
	}
	return inv.Invoke()
}

// HandleResult runs the asynchronous half of the state machine when the
// platform delivers a grant result. Unmatched correlation IDs are dropped
// silently: a late callback after resolution or abandonment is an expected
// lifecycle race, not an error. Errors from the intercepted call itself pass
// through uninterpreted.
func (c *Coordinator) HandleResult(id values.CorrelationID, res capabilities.Result) error {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		slog.Debug("dropping unmatched grant result", "correlation_id", id)
		return nil
	}

	host, alive := entry.inv.Host()
	if !alive {
		slog.Info("host destroyed before grant result, abandoning invocation",
			"correlation_id", id, "host", entry.inv.HostID())
		return nil
	}

	// Recompose over the originally requested set so granted and denied
	// always partition it, even when only the missing subset was requested.
	granted := append(append([]capabilities.ID{}, entry.preGranted...), res.Granted()...)
	final, err := capabilities.NewResult(entry.inv.Requested(), granted)
	if err != nil {
		return fmt.Errorf("composing grant result: %w", err)
	}

	if !entry.strat.OnPermissionsResult(host, final) {
		slog.Debug("strategy suppressed invocation",
			"correlation_id", id, "strategy", entry.strat.Name(), "result", final.String())
		return nil
	}

	return entry.inv.Invoke()
}

// OnHostDestroyed abandons every pending invocation referencing the host.
// No strategy hook runs and the intercepted call is never invoked.
func (c *Coordinator) OnHostDestroyed(hostID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	abandoned := 0
	for id, entry := range c.pending {
		if entry.inv.HostID() == hostID {
			delete(c.pending, id)
			abandoned++
		}
	}

	if abandoned > 0 {
		slog.Info("abandoned pending invocations for destroyed host",
			"host", hostID, "count", abandoned)
	}
}

// OnHostRecreated rebinds pending invocations from a destroyed host to its
// recreated instance so late results resume against the live object.
func (c *Coordinator) OnHostRecreated(hostID string, replacement hosts.Host) error {
	if replacement == nil {
		return fmt.Errorf("replacement host cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rebound := 0
	for _, entry := range c.pending {
		if entry.inv.HostID() != hostID {
			continue
		}
		if err := entry.inv.Rebind(replacement); err != nil {
			return fmt.Errorf("rebinding invocation %s: %w", entry.inv.CorrelationID(), err)
		}
		rebound++
	}

	if rebound > 0 {
		slog.Debug("rebound pending invocations to recreated host",
			"host", hostID, "replacement", replacement.ID(), "count", rebound)
	}
	return nil
}

// PendingCount reports the number of outstanding grant requests.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// resolveStrategy applies selector precedence: an explicit name from the
// call site wins over the registry default.
func (c *Coordinator) resolveStrategy(name string) (strategy.RequestStrategy, error) {
	if name != "" {
		return c.resolver.Resolve(name)
	}
	return c.resolver.ResolveDefault()
}
