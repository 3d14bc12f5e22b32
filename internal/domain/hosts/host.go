// Package hosts defines the lifecycle-bound objects on whose behalf calls
// are gated: a full screen or a screen-fragment.
package hosts

import "fmt"

// Kind is the closed set of host categories. Strategies declare the kind
// they can operate on; KindAny strategies accept either concrete kind.
type Kind int

const (
	// KindAny matches any concrete host kind. Only valid as a strategy
	// declaration, never as a host's runtime kind.
	KindAny Kind = iota
	// KindScreen is a full UI screen.
	KindScreen
	// KindFragment is a screen-fragment embedded in a screen.
	KindFragment
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindScreen:
		return "screen"
	case KindFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// ParseKind converts a config string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "any", "":
		return KindAny, nil
	case "screen":
		return KindScreen, nil
	case "fragment":
		return KindFragment, nil
	default:
		return KindAny, fmt.Errorf("unknown host kind: %q", s)
	}
}

// Accepts reports whether a strategy declared for kind k may be dispatched
// against a host of the given runtime kind.
func (k Kind) Accepts(host Kind) bool {
	if k == KindAny {
		return true
	}
	return k == host
}

// IsConcrete reports whether the kind names an actual host category.
func (k Kind) IsConcrete() bool {
	return k == KindScreen || k == KindFragment
}

// Host is a lifecycle-bound object that can be destroyed at any time while
// a grant request is outstanding. Implementations report their own liveness.
type Host interface {
	// ID uniquely identifies the host instance.
	ID() string
	// Kind returns the runtime category of the host.
	Kind() Kind
	// Alive reports whether the host has not been destroyed.
	Alive() bool
}
