package engine_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/permkit-dev/permkit/internal/application/errors"
	"github.com/permkit-dev/permkit/internal/application/services"
	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
	"github.com/permkit-dev/permkit/internal/domain/invocation"
	"github.com/permkit-dev/permkit/internal/domain/values"
	"github.com/permkit-dev/permkit/internal/infrastructure/engine"
)

// fakeHost is a minimal lifecycle-bound host.
type fakeHost struct {
	id    string
	kind  hosts.Kind
	alive bool
}

func (h *fakeHost) ID() string       { return h.id }
func (h *fakeHost) Kind() hosts.Kind { return h.kind }
func (h *fakeHost) Alive() bool      { return h.alive }

func screen(id string) *fakeHost   { return &fakeHost{id: id, kind: hosts.KindScreen, alive: true} }
func fragment(id string) *fakeHost { return &fakeHost{id: id, kind: hosts.KindFragment, alive: true} }

// fakeChecker reports a fixed status per capability; everything else is
// not determined.
type fakeChecker struct {
	statuses map[capabilities.ID]capabilities.GrantStatus
	err      error
	calls    int
}

func (c *fakeChecker) CheckAll(_ hosts.Host, set capabilities.Set) (map[capabilities.ID]capabilities.GrantStatus, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[capabilities.ID]capabilities.GrantStatus, set.Len())
	for _, id := range set.IDs() {
		out[id] = c.statuses[id]
	}
	return out, nil
}

// fakeRequester records launched requests; tests deliver results manually.
type fakeRequester struct {
	mu       sync.Mutex
	requests []recordedRequest
	err      error
}

type recordedRequest struct {
	host hosts.Host
	set  capabilities.Set
	id   values.CorrelationID
}

func (r *fakeRequester) RequestGrant(h hosts.Host, set capabilities.Set, id values.CorrelationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, recordedRequest{host: h, set: set, id: id})
	return nil
}

func (r *fakeRequester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *fakeRequester) last() recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

// recordingStrategy captures the hook call and answers with a fixed decision.
type recordingStrategy struct {
	name    string
	kind    hosts.Kind
	proceed bool

	mu      sync.Mutex
	calls   int
	lastRes capabilities.Result
}

func (s *recordingStrategy) Name() string         { return s.name }
func (s *recordingStrategy) HostKind() hosts.Kind { return s.kind }

func (s *recordingStrategy) OnPermissionsResult(_ hosts.Host, res capabilities.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastRes = res
	return s.proceed
}

func (s *recordingStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingStrategy) lastResult() capabilities.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRes
}

type fixture struct {
	registry  *services.StrategyRegistry
	checker   *fakeChecker
	requester *fakeRequester
	coord     *engine.Coordinator
}

func newFixture(t *testing.T, cfg engine.Config, statuses map[capabilities.ID]capabilities.GrantStatus) *fixture {
	t.Helper()
	registry := services.NewStrategyRegistry()
	checker := &fakeChecker{statuses: statuses}
	requester := &fakeRequester{}
	return &fixture{
		registry:  registry,
		checker:   checker,
		requester: requester,
		coord:     engine.NewCoordinator(registry, checker, requester, cfg),
	}
}

func pending(t *testing.T, h hosts.Host, call invocation.Call, strategyName string, caps ...capabilities.ID) *invocation.PendingInvocation {
	t.Helper()
	inv, err := invocation.NewPendingInvocation(h, call, capabilities.MustNewSet(caps...), strategyName)
	require.NoError(t, err)
	return inv
}

func TestBegin_ShortCircuitWhenFullyGranted(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), map[capabilities.ID]capabilities.GrantStatus{
		"CAMERA": capabilities.StatusGranted,
	})
	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))

	assert.Equal(t, 1, invoked, "method invoked synchronously on short-circuit")
	assert.Zero(t, f.requester.count(), "no platform request on short-circuit")
	assert.Zero(t, f.coord.PendingCount())
}

func TestBegin_ShortCircuitHonorsStrategyDecision(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), map[capabilities.ID]capabilities.GrantStatus{
		"CAMERA": capabilities.StatusGranted,
	})
	refusing := &recordingStrategy{name: "refuse", kind: hosts.KindAny, proceed: false}
	require.NoError(t, f.registry.Register(refusing))

	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "refuse", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))

	assert.Zero(t, invoked)
	assert.Equal(t, 1, refusing.callCount())
	assert.True(t, refusing.lastResult().FullyGranted())
	assert.Zero(t, f.requester.count())
}

func TestBegin_RequestsFullSetByDefault(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), map[capabilities.ID]capabilities.GrantStatus{
		"CAMERA": capabilities.StatusGranted,
	})
	inv := pending(t, screen("main"), func() error { return nil }, "", "CAMERA", "MICROPHONE")

	require.NoError(t, f.coord.Begin(inv))

	require.Equal(t, 1, f.requester.count())
	req := f.requester.last()
	assert.True(t, req.set.Equals(capabilities.MustNewSet("CAMERA", "MICROPHONE")),
		"full declared set requested, not just the missing subset")
	assert.True(t, req.id.Equals(inv.CorrelationID()))
	assert.Equal(t, 1, f.coord.PendingCount())
}

func TestBegin_RequestMissingOnlyOption(t *testing.T) {
	f := newFixture(t, engine.Config{RequestMissingOnly: true}, map[capabilities.ID]capabilities.GrantStatus{
		"CAMERA": capabilities.StatusGranted,
	})
	inv := pending(t, screen("main"), func() error { return nil }, "", "CAMERA", "MICROPHONE")

	require.NoError(t, f.coord.Begin(inv))

	require.Equal(t, 1, f.requester.count())
	assert.True(t, f.requester.last().set.Equals(capabilities.MustNewSet("MICROPHONE")))
}

func TestBegin_UnknownStrategyCreatesNoPending(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "ghost", "CAMERA")

	err := f.coord.Begin(inv)

	var unknownErr *apperrors.UnknownStrategyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Zero(t, invoked)
	assert.Zero(t, f.requester.count())
	assert.Zero(t, f.coord.PendingCount())
}

func TestBegin_IncompatibleStrategy(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	screenOnly := &recordingStrategy{name: "screen-only", kind: hosts.KindScreen, proceed: true}
	require.NoError(t, f.registry.Register(screenOnly))

	invoked := 0
	inv := pending(t, fragment("frag"), func() error { invoked++; return nil }, "screen-only", "CAMERA")

	err := f.coord.Begin(inv)

	var incompatErr *apperrors.IncompatibleStrategyError
	require.ErrorAs(t, err, &incompatErr)
	assert.Equal(t, hosts.KindScreen, incompatErr.StrategyKind)
	assert.Equal(t, hosts.KindFragment, incompatErr.HostKind)
	assert.Zero(t, invoked)
	assert.Zero(t, screenOnly.callCount())
	assert.Zero(t, f.requester.count())
}

func TestBegin_AnyKindStrategyAcceptsBothHostKinds(t *testing.T) {
	for _, h := range []hosts.Host{screen("s"), fragment("f")} {
		f := newFixture(t, engine.DefaultConfig(), map[capabilities.ID]capabilities.GrantStatus{
			"CAMERA": capabilities.StatusGranted,
		})
		invoked := 0
		inv := pending(t, h, func() error { invoked++; return nil }, "", "CAMERA")

		require.NoError(t, f.coord.Begin(inv))
		assert.Equal(t, 1, invoked, "host %s", h.ID())
	}
}

func TestBegin_InvalidHostFromChecker(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	f.checker.err = apperrors.NewInvalidHostError("main", "unsupported host type")

	inv := pending(t, screen("main"), func() error { return nil }, "", "CAMERA")
	err := f.coord.Begin(inv)

	var invalidErr *apperrors.InvalidHostError
	require.ErrorAs(t, err, &invalidErr)
	assert.Zero(t, f.requester.count())
}

func TestBegin_HostDestroyedBeforeCheck(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	h := screen("main")
	inv := pending(t, h, func() error { return nil }, "", "CAMERA")
	h.alive = false

	err := f.coord.Begin(inv)

	var invalidErr *apperrors.InvalidHostError
	require.ErrorAs(t, err, &invalidErr)
	assert.Zero(t, f.checker.calls)
}

func TestBegin_RequesterFailureRemovesEntry(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	f.requester.err = errors.New("platform unavailable")

	inv := pending(t, screen("main"), func() error { return nil }, "", "CAMERA")
	require.Error(t, f.coord.Begin(inv))
	assert.Zero(t, f.coord.PendingCount())
}

func TestHandleResult_EndToEndGrant(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))
	assert.Zero(t, invoked, "call must not run before the result arrives")

	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"CAMERA"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	assert.Equal(t, 1, invoked, "method invoked exactly once")
	assert.Zero(t, f.coord.PendingCount())
}

func TestHandleResult_PartialDenialSuppresses(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "", "A", "B")

	require.NoError(t, f.coord.Begin(inv))

	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"A"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	assert.Zero(t, invoked, "default strategy suppresses on any denial")
	assert.Zero(t, f.coord.PendingCount())
}

func TestHandleResult_CustomStrategyTakesPrecedenceOverDefault(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	custom := &recordingStrategy{name: "X", kind: hosts.KindAny, proceed: true}
	require.NoError(t, f.registry.Register(custom))
	// Point the default somewhere else entirely to prove the explicit
	// selector wins regardless of the configured default.
	other := &recordingStrategy{name: "other", kind: hosts.KindAny, proceed: false}
	require.NoError(t, f.registry.Register(other))
	require.NoError(t, f.registry.SetDefaultStrategyName("other"))

	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "X", "A", "B")

	require.NoError(t, f.coord.Begin(inv))

	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"A"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	assert.Equal(t, 1, custom.callCount())
	assert.Zero(t, other.callCount())
	assert.Equal(t, 1, invoked, "custom strategy chose to proceed despite denial")
}

// Result recomposition must partition the originally requested set even when
// only the missing subset was sent to the platform.
func TestHandleResult_PartitionInvariantWithMissingOnly(t *testing.T) {
	f := newFixture(t, engine.Config{RequestMissingOnly: true}, map[capabilities.ID]capabilities.GrantStatus{
		"CAMERA": capabilities.StatusGranted,
	})
	observer := &recordingStrategy{name: "observer", kind: hosts.KindAny, proceed: false}
	require.NoError(t, f.registry.Register(observer))

	inv := pending(t, screen("main"), func() error { return nil }, "observer", "CAMERA", "MICROPHONE", "LOCATION")
	require.NoError(t, f.coord.Begin(inv))

	subset := f.requester.last().set
	require.True(t, subset.Equals(capabilities.MustNewSet("MICROPHONE", "LOCATION")))

	res, err := capabilities.NewResult(subset, []capabilities.ID{"MICROPHONE"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	final := observer.lastResult()
	assert.ElementsMatch(t, []capabilities.ID{"CAMERA", "MICROPHONE"}, final.Granted())
	assert.ElementsMatch(t, []capabilities.ID{"LOCATION"}, final.Denied())
	assert.Equal(t, 3, final.Len())
}

func TestHandleResult_StaleCorrelationIDDropped(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	invoked := 0
	inv := pending(t, screen("main"), func() error { invoked++; return nil }, "", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))

	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"CAMERA"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))
	require.Equal(t, 1, invoked)

	// Duplicate delivery: idempotent drop, no second invocation, no error.
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))
	assert.Equal(t, 1, invoked)

	// Entirely unknown ID: same silent drop.
	require.NoError(t, f.coord.HandleResult(values.NewCorrelationID(), res))
}

func TestHostDestroyed_AbandonsPendingInvocation(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	observer := &recordingStrategy{name: "observer", kind: hosts.KindAny, proceed: true}
	require.NoError(t, f.registry.Register(observer))

	h := screen("main")
	invoked := 0
	inv := pending(t, h, func() error { invoked++; return nil }, "observer", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))
	require.Equal(t, 1, f.coord.PendingCount())

	h.alive = false
	f.coord.OnHostDestroyed("main")

	assert.Zero(t, f.coord.PendingCount(), "correlation table cleared")

	// A late result for the abandoned invocation changes nothing.
	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"CAMERA"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	assert.Zero(t, invoked, "method never invoked after abandonment")
	assert.Zero(t, observer.callCount(), "result hook never called after abandonment")
}

func TestHostDestroyed_LeavesOtherHostsPending(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	a := screen("a")
	b := screen("b")

	invA := pending(t, a, func() error { return nil }, "", "CAMERA")
	invB := pending(t, b, func() error { return nil }, "", "CAMERA")
	require.NoError(t, f.coord.Begin(invA))
	require.NoError(t, f.coord.Begin(invB))
	require.Equal(t, 2, f.coord.PendingCount())

	a.alive = false
	f.coord.OnHostDestroyed("a")

	assert.Equal(t, 1, f.coord.PendingCount())
}

func TestHandleResult_HostDiedWithoutLifecycleEvent(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	observer := &recordingStrategy{name: "observer", kind: hosts.KindAny, proceed: true}
	require.NoError(t, f.registry.Register(observer))

	h := screen("main")
	invoked := 0
	inv := pending(t, h, func() error { invoked++; return nil }, "observer", "CAMERA")
	require.NoError(t, f.coord.Begin(inv))

	// Host dies but the bridge never fired; liveness is still consulted.
	h.alive = false
	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"CAMERA"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	assert.Zero(t, invoked)
	assert.Zero(t, observer.callCount())
	assert.Zero(t, f.coord.PendingCount())
}

func TestHostRecreated_RebindsAndResumes(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	old := screen("main")
	invokedOn := ""
	inv := pending(t, old, func() error { invokedOn = "recreated"; return nil }, "", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))

	old.alive = false
	replacement := screen("main-v2")
	require.NoError(t, f.coord.OnHostRecreated("main", replacement))

	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"CAMERA"})
	require.NoError(t, err)
	require.NoError(t, f.coord.HandleResult(inv.CorrelationID(), res))

	assert.Equal(t, "recreated", invokedOn, "late result invokes on the new host instance")
}

func TestHostRecreated_NilReplacement(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	require.Error(t, f.coord.OnHostRecreated("main", nil))
}

func TestHandleResult_InvocationErrorPropagates(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)
	boom := errors.New("target method failed")
	inv := pending(t, screen("main"), func() error { return boom }, "", "CAMERA")

	require.NoError(t, f.coord.Begin(inv))

	res, err := capabilities.NewResult(inv.Requested(), []capabilities.ID{"CAMERA"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.coord.HandleResult(inv.CorrelationID(), res), boom)
}

func TestCoordinator_ConcurrentPendingInvocations(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig(), nil)

	const n = 24
	var invoked [n]int
	invs := make([]*invocation.PendingInvocation, n)
	hostsPool := []*fakeHost{screen("a"), screen("b"), fragment("c")}

	for i := 0; i < n; i++ {
		i := i
		invs[i] = pending(t, hostsPool[i%len(hostsPool)], func() error { invoked[i]++; return nil }, "", "CAMERA")
		require.NoError(t, f.coord.Begin(invs[i]))
	}
	require.Equal(t, n, f.coord.PendingCount())

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := capabilities.NewResult(invs[i].Requested(), []capabilities.ID{"CAMERA"})
			require.NoError(t, err)
			assert.NoError(t, f.coord.HandleResult(invs[i].CorrelationID(), res))
		}()
	}
	wg.Wait()

	assert.Zero(t, f.coord.PendingCount())
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, invoked[i], "invocation %d resolved independently", i)
	}
}
