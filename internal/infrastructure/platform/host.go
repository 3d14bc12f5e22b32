package platform

import (
	"sync/atomic"

	"github.com/permkit-dev/permkit/internal/domain/hosts"
)

// SimulatedHost is a lifecycle-bound host for scenarios and tests. Destroy
// flips liveness; Recreate produces a fresh live instance sharing the same
// logical identity, the way a screen survives a configuration change.
type SimulatedHost struct {
	id         string
	kind       hosts.Kind
	generation int
	destroyed  atomic.Bool
}

// Ensure interface compliance
var _ hosts.Host = (*SimulatedHost)(nil)

// NewSimulatedHost creates a live host.
func NewSimulatedHost(id string, kind hosts.Kind) *SimulatedHost {
	return &SimulatedHost{id: id, kind: kind}
}

// ID implements hosts.Host.
func (h *SimulatedHost) ID() string {
	return h.id
}

// Kind implements hosts.Host.
func (h *SimulatedHost) Kind() hosts.Kind {
	return h.kind
}

// Alive implements hosts.Host.
func (h *SimulatedHost) Alive() bool {
	return !h.destroyed.Load()
}

// Generation counts how many times this logical host has been recreated.
func (h *SimulatedHost) Generation() int {
	return h.generation
}

// Destroy marks the host destroyed. Idempotent.
func (h *SimulatedHost) Destroy() {
	h.destroyed.Store(true)
}

// Recreate destroys this instance and returns its live successor.
func (h *SimulatedHost) Recreate() *SimulatedHost {
	h.Destroy()
	return &SimulatedHost{
		id:         h.id,
		kind:       h.kind,
		generation: h.generation + 1,
	}
}
