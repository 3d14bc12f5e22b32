// Package invocation holds the value object that captures an intercepted
// call so it can be resumed or abandoned later.
package invocation

import (
	"fmt"
	"time"

	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/values"
)

// Call is the original intercepted method bound with its original arguments.
// Whatever it returns propagates to the caller uninterpreted.
type Call func() error

// PendingInvocation captures everything needed to resume or abandon an
// intercepted call: a weak host reference, the bound callable, the requested
// capability set, the strategy selector, and the correlation ID assigned at
// interception time. One instance exists per intercepted call and is owned
// by the coordinator until it is resolved or abandoned.
type PendingInvocation struct {
	ref          hosts.Ref
	call         Call
	requested    capabilities.Set
	strategyName string
	id           values.CorrelationID
	createdAt    time.Time
}

// NewPendingInvocation builds a PendingInvocation for a live host and assigns
// it a fresh correlation ID. An empty strategy name selects the registry's
// default at dispatch time.
func NewPendingInvocation(host hosts.Host, call Call, requested capabilities.Set, strategyName string) (*PendingInvocation, error) {
	ref, err := hosts.NewRef(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host for pending invocation: %w", err)
	}
	if call == nil {
		return nil, fmt.Errorf("intercepted call cannot be nil")
	}
	if requested.IsZero() {
		return nil, fmt.Errorf("requested capability set cannot be empty")
	}

	return &PendingInvocation{
		ref:          ref,
		call:         call,
		requested:    requested,
		strategyName: strategyName,
		id:           values.NewCorrelationID(),
		createdAt:    time.Now(),
	}, nil
}

// CorrelationID returns the token linking this invocation to its grant request.
func (p *PendingInvocation) CorrelationID() values.CorrelationID {
	return p.id
}

// Host returns the referenced host if it is still alive.
func (p *PendingInvocation) Host() (hosts.Host, bool) {
	return p.ref.Get()
}

// HostID returns the identity of the referenced host, live or not.
func (p *PendingInvocation) HostID() string {
	return p.ref.HostID()
}

// Requested returns the capability set declared at the call site.
func (p *PendingInvocation) Requested() capabilities.Set {
	return p.requested
}

// StrategyName returns the explicit strategy selector, or "" for the default.
func (p *PendingInvocation) StrategyName() string {
	return p.strategyName
}

// CreatedAt returns the interception time.
func (p *PendingInvocation) CreatedAt() time.Time {
	return p.createdAt
}

// Rebind points the invocation at a recreated host instance.
func (p *PendingInvocation) Rebind(h hosts.Host) error {
	return p.ref.Rebind(h)
}

// Invoke runs the intercepted call. The host must still be alive; errors from
// the call itself pass through untouched.
func (p *PendingInvocation) Invoke() error {
	if _, ok := p.ref.Get(); !ok {
		return fmt.Errorf("host %s destroyed before invocation", p.ref.HostID())
	}
	return p.call()
}
