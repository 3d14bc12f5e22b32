// Package capabilities defines domain types for runtime-gated capabilities.
package capabilities

import (
	"fmt"
	"strings"
)

// ID identifies a runtime-gated capability, e.g. "CAMERA" or "RECORD_AUDIO".
// This is a pure value object in the domain.
type ID string

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// IsZero returns true if this is the zero-value identifier.
func (id ID) IsZero() bool {
	return id == ""
}

// Set is an ordered collection of distinct capability identifiers.
// Order is preserved for reporting but carries no semantic weight.
type Set struct {
	ids []ID
}

// NewSet creates a Set with validation. A set must contain at least one
// identifier, identifiers must be non-blank, and duplicates are rejected.
func NewSet(ids ...ID) (Set, error) {
	if len(ids) == 0 {
		return Set{}, fmt.Errorf("capability set cannot be empty")
	}

	seen := make(map[ID]bool, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		trimmed := ID(strings.TrimSpace(string(id)))
		if trimmed.IsZero() {
			return Set{}, fmt.Errorf("capability identifier cannot be blank")
		}
		if seen[trimmed] {
			return Set{}, fmt.Errorf("duplicate capability identifier: %s", trimmed)
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}

	return Set{ids: out}, nil
}

// MustNewSet creates a Set or panics (for tests and static declarations).
func MustNewSet(ids ...ID) Set {
	s, err := NewSet(ids...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSetFromStrings creates a Set from raw strings.
func NewSetFromStrings(ids []string) (Set, error) {
	converted := make([]ID, len(ids))
	for i, s := range ids {
		converted[i] = ID(s)
	}
	return NewSet(converted...)
}

// IDs returns a copy of the identifiers in declaration order.
func (s Set) IDs() []ID {
	out := make([]ID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Strings returns the identifiers as plain strings in declaration order.
func (s Set) Strings() []string {
	out := make([]string, len(s.ids))
	for i, id := range s.ids {
		out[i] = string(id)
	}
	return out
}

// Contains checks membership.
func (s Set) Contains(id ID) bool {
	for _, existing := range s.ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Len returns the number of identifiers.
func (s Set) Len() int {
	return len(s.ids)
}

// IsZero returns true if this is the zero value (no identifiers).
func (s Set) IsZero() bool {
	return len(s.ids) == 0
}

// Equals checks if two sets hold the same identifiers regardless of order.
func (s Set) Equals(other Set) bool {
	if len(s.ids) != len(other.ids) {
		return false
	}
	for _, id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// String returns a comma-joined rendering in declaration order.
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}
