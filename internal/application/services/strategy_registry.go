// Package services contains application services that wire the permission
// engine together: strategy registration and scenario execution.
package services

import (
	"sync"

	apperrors "github.com/permkit-dev/permkit/internal/application/errors"
	"github.com/permkit-dev/permkit/internal/domain/strategy"
)

// StrategyRegistry maps strategy names to strategy instances and tracks the
// configurable default. Reads may be concurrent; registration and default
// changes are write-guarded.
type StrategyRegistry struct {
	mu          sync.RWMutex
	strategies  map[string]strategy.RequestStrategy
	defaultName string
}

// NewStrategyRegistry creates a registry with the built-in system-dialog
// strategy preregistered as the initial default.
func NewStrategyRegistry() *StrategyRegistry {
	builtin := strategy.NewSystemDialog()
	return &StrategyRegistry{
		strategies: map[string]strategy.RequestStrategy{
			builtin.Name(): builtin,
		},
		defaultName: builtin.Name(),
	}
}

// Register stores a strategy under its own name. Registering a name that is
// already taken is an error, not a silent overwrite; the first registrant
// stays resolvable.
func (r *StrategyRegistry) Register(s strategy.RequestStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.strategies[name]; exists {
		return apperrors.NewDuplicateStrategyNameError(name)
	}
	r.strategies[name] = s
	return nil
}

// Unregister removes a strategy if present; absent names are a no-op.
// The current default name is left untouched even if it no longer resolves,
// matching the explicit-configuration contract: callers that unregister the
// default are expected to set a new one.
func (r *StrategyRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strategies, name)
}

// Resolve looks up a strategy by name.
func (r *StrategyRegistry) Resolve(name string) (strategy.RequestStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, apperrors.NewUnknownStrategyError(name)
	}
	return s, nil
}

// ResolveDefault returns the strategy bound to the current default name.
func (r *StrategyRegistry) ResolveDefault() (strategy.RequestStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[r.defaultName]
	if !ok {
		return nil, apperrors.NewUnknownStrategyError(r.defaultName)
	}
	return s, nil
}

// SetDefaultStrategyName changes the default. The name must already be
// registered.
func (r *StrategyRegistry) SetDefaultStrategyName(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[name]; !ok {
		return apperrors.NewUnknownStrategyError(name)
	}
	r.defaultName = name
	return nil
}

// DefaultStrategyName returns the current default name.
func (r *StrategyRegistry) DefaultStrategyName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Names returns the registered strategy names, unordered.
func (r *StrategyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}
