// Package apperrors defines application-level error types.
//
// Every type here represents a configuration or usage error detected
// synchronously at interception time. They abort the gated call before any
// grant request is issued; the intercepted method is never invoked.
package apperrors

import (
	"fmt"

	"github.com/permkit-dev/permkit/internal/domain/hosts"
)

// UnknownStrategyError indicates a strategy name that is not registered.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy: %q is not registered", e.Name)
}

// NewUnknownStrategyError creates a new unknown-strategy error.
func NewUnknownStrategyError(name string) *UnknownStrategyError {
	return &UnknownStrategyError{Name: name}
}

// DuplicateStrategyNameError indicates a registration under a name that is
// already taken. The first registrant stays in place.
type DuplicateStrategyNameError struct {
	Name string
}

func (e *DuplicateStrategyNameError) Error() string {
	return fmt.Sprintf("duplicate strategy name: %q is already registered", e.Name)
}

// NewDuplicateStrategyNameError creates a new duplicate-name error.
func NewDuplicateStrategyNameError(name string) *DuplicateStrategyNameError {
	return &DuplicateStrategyNameError{Name: name}
}

// IncompatibleStrategyError indicates a strategy whose declared host kind
// does not accept the runtime kind of the host it was dispatched against.
type IncompatibleStrategyError struct {
	Strategy     string
	StrategyKind hosts.Kind
	HostKind     hosts.Kind
}

func (e *IncompatibleStrategyError) Error() string {
	return fmt.Sprintf("strategy %q accepts %s hosts, got %s host",
		e.Strategy, e.StrategyKind, e.HostKind)
}

// NewIncompatibleStrategyError creates a new incompatibility error.
func NewIncompatibleStrategyError(strategy string, strategyKind, hostKind hosts.Kind) *IncompatibleStrategyError {
	return &IncompatibleStrategyError{
		Strategy:     strategy,
		StrategyKind: strategyKind,
		HostKind:     hostKind,
	}
}

// InvalidHostError indicates a host the platform collaborator cannot serve:
// nil, already destroyed at interception time, or of no concrete kind.
type InvalidHostError struct {
	HostID string
	Reason string
}

func (e *InvalidHostError) Error() string {
	if e.HostID == "" {
		return fmt.Sprintf("invalid host: %s", e.Reason)
	}
	return fmt.Sprintf("invalid host %s: %s", e.HostID, e.Reason)
}

// NewInvalidHostError creates a new invalid-host error.
func NewInvalidHostError(hostID, reason string) *InvalidHostError {
	return &InvalidHostError{HostID: hostID, Reason: reason}
}
