// Package platform provides the permission authority collaborator: grant
// status checks, asynchronous grant requests, and persistent grant storage.
// It stands in for the operating system's permission service in simulations
// and tests.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/permkit-dev/permkit/internal/application/errors"
	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/values"
	"github.com/permkit-dev/permkit/internal/infrastructure/engine"
)

// DecisionFunc decides which of the requested capabilities get granted.
// It is consulted once per grant request with the full requested set.
type DecisionFunc func(h hosts.Host, set capabilities.Set) []capabilities.ID

// GrantAll grants every requested capability.
func GrantAll(_ hosts.Host, set capabilities.Set) []capabilities.ID {
	return set.IDs()
}

// DenyAll grants nothing.
func DenyAll(_ hosts.Host, _ capabilities.Set) []capabilities.ID {
	return nil
}

// Scripted grants exactly the capabilities mapped to true.
func Scripted(decisions map[capabilities.ID]bool) DecisionFunc {
	return func(_ hosts.Host, set capabilities.Set) []capabilities.ID {
		var granted []capabilities.ID
		for _, id := range set.IDs() {
			if decisions[id] {
				granted = append(granted, id)
			}
		}
		return granted
	}
}

// delivery is one decided grant result waiting to reach the coordinator.
type delivery struct {
	id  values.CorrelationID
	res capabilities.Result
}

// Authority simulates the platform permission service. Results are delivered
// through a single dispatch goroutine, so callbacks arrive serialized the way
// a UI main loop would deliver them. Standing grants persist across requests;
// denials stick for the session, mirroring a platform that stops re-asking.
type Authority struct {
	mu            sync.Mutex
	granted       map[capabilities.ID]bool
	sessionDenied map[capabilities.ID]bool
	decide        DecisionFunc
	handler       engine.ResultHandler
	hold          bool
	held          []delivery

	queue    chan delivery
	inflight sync.WaitGroup
	group    *errgroup.Group
	cancel   context.CancelFunc
}

// Ensure interface compliance
var (
	_ engine.PermissionChecker = (*Authority)(nil)
	_ engine.GrantRequester    = (*Authority)(nil)
)

// Option configures an Authority.
type Option func(*Authority)

// WithDecision sets the decision policy. Default is DenyAll.
func WithDecision(fn DecisionFunc) Option {
	return func(a *Authority) { a.decide = fn }
}

// WithStandingGrants seeds capabilities that are already granted.
func WithStandingGrants(ids ...capabilities.ID) Option {
	return func(a *Authority) {
		for _, id := range ids {
			a.granted[id] = true
		}
	}
}

// NewAuthority creates an authority. Call SetHandler before Start.
func NewAuthority(opts ...Option) *Authority {
	a := &Authority{
		granted:       make(map[capabilities.ID]bool),
		sessionDenied: make(map[capabilities.ID]bool),
		decide:        DenyAll,
		queue:         make(chan delivery, 64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetHandler wires the coordinator that receives results. Must be called
// before Start; the coordinator needs the authority at construction time,
// so the back-reference is set afterwards.
func (a *Authority) SetHandler(h engine.ResultHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Start launches the dispatch goroutine.
func (a *Authority) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handler == nil {
		return fmt.Errorf("authority has no result handler")
	}
	if a.group != nil {
		return fmt.Errorf("authority already started")
	}

	gctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(gctx)
	a.group = g
	a.cancel = cancel

	handler := a.handler
	g.Go(func() error {
		for {
			select {
			case d, ok := <-a.queue:
				if !ok {
					return nil
				}
				if err := handler.HandleResult(d.id, d.res); err != nil {
					slog.Warn("gated invocation failed", "correlation_id", d.id, "error", err)
				}
				a.inflight.Done()
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	return nil
}

// Close stops the dispatch goroutine after draining queued deliveries.
func (a *Authority) Close() error {
	a.mu.Lock()
	group := a.group
	cancel := a.cancel
	a.group = nil
	a.cancel = nil
	a.mu.Unlock()

	if group == nil {
		return nil
	}

	a.inflight.Wait()
	close(a.queue)
	err := group.Wait()
	cancel()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// CheckAll implements engine.PermissionChecker. Status is derived fresh on
// every call: standing grants report granted, session denials report denied,
// everything else is not determined.
func (a *Authority) CheckAll(h hosts.Host, set capabilities.Set) (map[capabilities.ID]capabilities.GrantStatus, error) {
	if h == nil {
		return nil, apperrors.NewInvalidHostError("", "host is nil")
	}
	if !h.Kind().IsConcrete() {
		return nil, apperrors.NewInvalidHostError(h.ID(), fmt.Sprintf("unsupported host kind %s", h.Kind()))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[capabilities.ID]capabilities.GrantStatus, set.Len())
	for _, id := range set.IDs() {
		switch {
		case a.granted[id]:
			out[id] = capabilities.StatusGranted
		case a.sessionDenied[id]:
			out[id] = capabilities.StatusDenied
		default:
			out[id] = capabilities.StatusNotDetermined
		}
	}
	return out, nil
}

// RequestGrant implements engine.GrantRequester. The decision policy runs
// synchronously but the result is delivered asynchronously, tagged with the
// correlation ID, exactly once.
func (a *Authority) RequestGrant(h hosts.Host, set capabilities.Set, id values.CorrelationID) error {
	if h == nil {
		return apperrors.NewInvalidHostError("", "host is nil")
	}

	// The policy may block for a long time (interactive prompt); run it
	// outside the lock so concurrent checks are never held up by it.
	a.mu.Lock()
	decide := a.decide
	a.mu.Unlock()

	decided := decide(h, set)
	grantedSet := make(map[capabilities.ID]bool, len(decided))
	for _, g := range decided {
		grantedSet[g] = true
	}

	a.mu.Lock()
	var granted []capabilities.ID
	for _, capID := range set.IDs() {
		if a.granted[capID] || grantedSet[capID] {
			granted = append(granted, capID)
			a.granted[capID] = true
			delete(a.sessionDenied, capID)
		} else {
			a.sessionDenied[capID] = true
		}
	}

	res, err := capabilities.NewResult(set, granted)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("building grant result: %w", err)
	}

	d := delivery{id: id, res: res}
	if a.hold {
		a.held = append(a.held, d)
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	a.enqueue(d)
	return nil
}

// SetDecision swaps the decision policy. Scenario runners script a fresh
// policy per call.
func (a *Authority) SetDecision(fn DecisionFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fn == nil {
		fn = DenyAll
	}
	a.decide = fn
}

// SetHold toggles delivery holding. While holding, decided results accumulate
// until Flush; this lets scenarios destroy a host between the request and its
// callback.
func (a *Authority) SetHold(hold bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hold = hold
}

// Flush releases all held deliveries in decision order.
func (a *Authority) Flush() {
	a.mu.Lock()
	held := a.held
	a.held = nil
	a.mu.Unlock()

	for _, d := range held {
		a.enqueue(d)
	}
}

// Drain blocks until every enqueued delivery has been handled.
func (a *Authority) Drain() {
	a.inflight.Wait()
}

// Granted reports whether a capability currently has a standing grant.
func (a *Authority) Granted(id capabilities.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.granted[id]
}

// StandingGrants returns all capabilities with a standing grant, unordered.
func (a *Authority) StandingGrants() []capabilities.ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]capabilities.ID, 0, len(a.granted))
	for id := range a.granted {
		out = append(out, id)
	}
	return out
}

func (a *Authority) enqueue(d delivery) {
	a.inflight.Add(1)
	a.queue <- d
}
