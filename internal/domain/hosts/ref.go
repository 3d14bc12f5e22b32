package hosts

import "fmt"

// Ref is a non-owning reference to a host. Holding a Ref never extends the
// host's lifetime; liveness is consulted on every access and a Ref to a
// destroyed host yields nothing. A Ref can be rebound when the host is
// recreated with a new instance of the same kind.
type Ref struct {
	host Host
}

// NewRef creates a Ref to a live host. The host must carry a concrete kind.
func NewRef(h Host) (Ref, error) {
	if h == nil {
		return Ref{}, fmt.Errorf("host cannot be nil")
	}
	if !h.Kind().IsConcrete() {
		return Ref{}, fmt.Errorf("host kind %s is not a concrete host category", h.Kind())
	}
	return Ref{host: h}, nil
}

// Get returns the referenced host if it is still alive.
func (r Ref) Get() (Host, bool) {
	if r.host == nil || !r.host.Alive() {
		return nil, false
	}
	return r.host, true
}

// HostID returns the identity of the referenced host, live or not.
func (r Ref) HostID() string {
	if r.host == nil {
		return ""
	}
	return r.host.ID()
}

// Kind returns the runtime kind of the referenced host.
func (r Ref) Kind() Kind {
	if r.host == nil {
		return KindAny
	}
	return r.host.Kind()
}

// Rebind points the reference at a recreated host instance. The replacement
// must be live and of the same kind as the original.
func (r *Ref) Rebind(h Host) error {
	if h == nil {
		return fmt.Errorf("replacement host cannot be nil")
	}
	if r.host != nil && h.Kind() != r.host.Kind() {
		return fmt.Errorf("cannot rebind %s host to %s host", r.host.Kind(), h.Kind())
	}
	if !h.Alive() {
		return fmt.Errorf("cannot rebind to destroyed host %s", h.ID())
	}
	r.host = h
	return nil
}

// IsZero returns true if the reference points at nothing.
func (r Ref) IsZero() bool {
	return r.host == nil
}
