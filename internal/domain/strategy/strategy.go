// Package strategy defines the pluggable policy objects consulted after a
// grant request completes.
package strategy

import (
	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
)

// RequestStrategy decides what happens once the outcome of a grant request
// is known. Implementations may perform their own side effects (closing the
// host, showing UI) from within the result hook.
type RequestStrategy interface {
	// Name is the stable unique identifier used for registry lookup and
	// for the strategy selector on a gated call.
	Name() string

	// HostKind declares which host category the strategy can operate on.
	// hosts.KindAny accepts both screens and fragments.
	HostKind() hosts.Kind

	// OnPermissionsResult is called exactly once per resolved request,
	// after the outcome is known and before any decision to re-invoke.
	// Returning true proceeds with the intercepted call; false suppresses it.
	OnPermissionsResult(h hosts.Host, res capabilities.Result) bool
}

// DefaultName is the name of the built-in strategy preregistered as the
// initial registry default.
const DefaultName = "system-dialog"

// SystemDialog is the built-in default strategy: request once through the
// platform dialog and proceed only on a full grant. It accepts any host kind.
type SystemDialog struct{}

// NewSystemDialog creates the built-in default strategy.
func NewSystemDialog() *SystemDialog {
	return &SystemDialog{}
}

// Name implements RequestStrategy.
func (s *SystemDialog) Name() string {
	return DefaultName
}

// HostKind implements RequestStrategy.
func (s *SystemDialog) HostKind() hosts.Kind {
	return hosts.KindAny
}

// OnPermissionsResult proceeds iff nothing was denied.
func (s *SystemDialog) OnPermissionsResult(_ hosts.Host, res capabilities.Result) bool {
	return res.FullyGranted()
}
