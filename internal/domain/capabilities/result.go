package capabilities

import "fmt"

// GrantStatus is the current standing of a single capability for a host.
// It is derived fresh on every query and never cached beyond a single check.
type GrantStatus int

const (
	// StatusNotDetermined means the capability has never been decided.
	StatusNotDetermined GrantStatus = iota
	// StatusGranted means the capability is currently granted.
	StatusGranted
	// StatusDenied means the capability was asked for and refused.
	StatusDenied
)

// String returns a human-readable representation of the status.
func (s GrantStatus) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	case StatusNotDetermined:
		return "not-determined"
	default:
		return "unknown"
	}
}

// Result is the outcome of a completed grant request: the requested set
// partitioned into granted and denied identifiers. Every requested capability
// appears in exactly one side, never both.
type Result struct {
	granted []ID
	denied  []ID
}

// NewResult builds a Result for a requested set given the identifiers that
// ended up granted. Identifiers outside the requested set are ignored; every
// requested identifier not reported granted lands in the denied side, so the
// partition invariant holds by construction.
func NewResult(requested Set, granted []ID) (Result, error) {
	if requested.IsZero() {
		return Result{}, fmt.Errorf("cannot build result for empty capability set")
	}

	grantedSet := make(map[ID]bool, len(granted))
	for _, id := range granted {
		grantedSet[id] = true
	}

	res := Result{}
	for _, id := range requested.IDs() {
		if grantedSet[id] {
			res.granted = append(res.granted, id)
		} else {
			res.denied = append(res.denied, id)
		}
	}

	return res, nil
}

// AllGranted builds the short-circuit result: every requested capability
// granted, nothing denied.
func AllGranted(requested Set) Result {
	return Result{granted: requested.IDs()}
}

// Granted returns a copy of the granted identifiers in request order.
func (r Result) Granted() []ID {
	out := make([]ID, len(r.granted))
	copy(out, r.granted)
	return out
}

// Denied returns a copy of the denied identifiers in request order.
func (r Result) Denied() []ID {
	out := make([]ID, len(r.denied))
	copy(out, r.denied)
	return out
}

// FullyGranted returns true if nothing was denied.
func (r Result) FullyGranted() bool {
	return len(r.denied) == 0
}

// HasGranted checks whether a specific capability was granted.
func (r Result) HasGranted(id ID) bool {
	for _, g := range r.granted {
		if g == id {
			return true
		}
	}
	return false
}

// Len returns the total number of capabilities covered by the result.
func (r Result) Len() int {
	return len(r.granted) + len(r.denied)
}

// String returns a compact rendering for logs.
func (r Result) String() string {
	return fmt.Sprintf("granted=%v denied=%v", r.granted, r.denied)
}
