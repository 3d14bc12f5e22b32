package gate

import (
	"errors"
	"sync"

	"github.com/permkit-dev/permkit/internal/application/services"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/invocation"
)

// ErrNotInitialized is returned by the package-level helpers before Init.
var ErrNotInitialized = errors.New("gate: not initialized, call gate.Init first")

var (
	defaultMu   sync.RWMutex
	defaultGate *Gate
)

// Init installs the process-wide default gate used by the package-level
// helpers. Calling Init again replaces the previous default; pending requests
// on the old gate keep their own coordinator.
func Init(g *Gate) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultGate = g
}

// Default returns the process-wide gate, or nil before Init.
func Default() *Gate {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultGate
}

// Call gates fn through the process-wide gate.
func Call(host hosts.Host, fn invocation.Call, capabilityIDs []string, opts ...CallOption) error {
	g := Default()
	if g == nil {
		return ErrNotInitialized
	}
	return g.Call(host, fn, capabilityIDs, opts...)
}

// Registry returns the process-wide gate's strategy registry, or nil before
// Init.
func Registry() *services.StrategyRegistry {
	g := Default()
	if g == nil {
		return nil
	}
	return g.Registry()
}

// SetDefaultStrategyName changes the process-wide default strategy.
func SetDefaultStrategyName(name string) error {
	g := Default()
	if g == nil {
		return ErrNotInitialized
	}
	return g.SetDefaultStrategyName(name)
}
