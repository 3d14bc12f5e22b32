// Package gate is the embedding surface for capability-gated calls. A Gate
// owns a strategy registry and a request coordinator; callers wrap the code
// paths that need runtime permissions in Gate.Call and the engine takes care
// of checking, requesting, and conditional re-invocation.
package gate

import (
	"github.com/permkit-dev/permkit/internal/application/services"
	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/invocation"
	"github.com/permkit-dev/permkit/internal/domain/strategy"
	"github.com/permkit-dev/permkit/internal/domain/values"
	"github.com/permkit-dev/permkit/internal/infrastructure/engine"
)

// Gate bundles the registry and coordinator behind one call surface.
type Gate struct {
	registry *services.StrategyRegistry
	coord    *engine.Coordinator
}

// Lifecycle and result plumbing pass straight through to the coordinator.
var (
	_ engine.ResultHandler   = (*Gate)(nil)
	_ engine.LifecycleBridge = (*Gate)(nil)
)

// Option configures a Gate at construction time.
type Option func(*gateOptions)

type gateOptions struct {
	config engine.Config
}

// WithConfig overrides the engine configuration.
func WithConfig(cfg engine.Config) Option {
	return func(o *gateOptions) { o.config = cfg }
}

// WithRequestMissingOnly makes grant requests carry only the capabilities
// that are not yet granted, instead of the full requested set.
func WithRequestMissingOnly() Option {
	return func(o *gateOptions) { o.config.RequestMissingOnly = true }
}

// New creates a Gate wired to the platform collaborators. The registry comes
// preloaded with the system dialog strategy as the default.
func New(checker engine.PermissionChecker, requester engine.GrantRequester, opts ...Option) *Gate {
	o := gateOptions{config: engine.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	registry := services.NewStrategyRegistry()
	return &Gate{
		registry: registry,
		coord:    engine.NewCoordinator(registry, checker, requester, o.config),
	}
}

// Registry exposes the strategy registry for registration and defaults.
func (g *Gate) Registry() *services.StrategyRegistry {
	return g.registry
}

// RegisterStrategy adds a strategy to the gate's registry.
func (g *Gate) RegisterStrategy(s strategy.RequestStrategy) error {
	return g.registry.Register(s)
}

// SetDefaultStrategyName changes which registered strategy handles calls
// that name no strategy.
func (g *Gate) SetDefaultStrategyName(name string) error {
	return g.registry.SetDefaultStrategyName(name)
}

// CallOption configures a single gated call.
type CallOption func(*callOptions)

type callOptions struct {
	strategyName string
}

// WithStrategy selects a registered strategy by name for this call. Without
// it the registry default applies.
func WithStrategy(name string) CallOption {
	return func(o *callOptions) { o.strategyName = name }
}

// Call gates fn behind the listed capabilities on behalf of host. When every
// capability is already granted, fn runs synchronously and Call returns its
// error. Otherwise Call returns nil once the grant request is launched and fn
// runs later, from the result callback, if the strategy lets it.
func (g *Gate) Call(host hosts.Host, fn invocation.Call, capabilityIDs []string, opts ...CallOption) error {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	set, err := capabilities.NewSetFromStrings(capabilityIDs)
	if err != nil {
		return err
	}

	inv, err := invocation.NewPendingInvocation(host, fn, set, o.strategyName)
	if err != nil {
		return err
	}

	return g.coord.Begin(inv)
}

// HandleResult implements engine.ResultHandler by forwarding to the
// coordinator. Platform adapters deliver asynchronous grant results here.
func (g *Gate) HandleResult(id values.CorrelationID, res capabilities.Result) error {
	return g.coord.HandleResult(id, res)
}

// OnHostDestroyed implements engine.LifecycleBridge.
func (g *Gate) OnHostDestroyed(hostID string) {
	g.coord.OnHostDestroyed(hostID)
}

// OnHostRecreated implements engine.LifecycleBridge.
func (g *Gate) OnHostRecreated(hostID string, replacement hosts.Host) error {
	return g.coord.OnHostRecreated(hostID, replacement)
}

// PendingCount reports outstanding grant requests.
func (g *Gate) PendingCount() int {
	return g.coord.PendingCount()
}
