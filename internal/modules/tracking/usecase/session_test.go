package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stepcounter/internal/modules/tracking/dto"
	trackingin "stepcounter/internal/modules/tracking/port/in"
	trackingout "stepcounter/internal/modules/tracking/port/out"
	"stepcounter/internal/modules/tracking/service"
	"stepcounter/internal/modules/tracking/usecase"
	"stepcounter/internal/platform/clock"
	apperrors "stepcounter/internal/platform/errors"
)

type fakeSubscription struct {
	events    chan trackingout.Event
	once      sync.Once
	closed    chan struct{}
	leaveOpen bool
}

func (s *fakeSubscription) Events() <-chan trackingout.Event { return s.events }

// Close ends the event stream like the real sources do, unless the
// subscription was built to ignore Close.
func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
		if !s.leaveOpen {
			close(s.events)
		}
	})
	return nil
}

type fakeSource struct {
	mu            sync.Mutex
	subscriptions []*fakeSubscription
	subscribeErr  error
	leaveOpen     bool
}

func (f *fakeSource) Subscribe(context.Context) (trackingout.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSubscription{events: make(chan trackingout.Event), closed: make(chan struct{}), leaveOpen: f.leaveOpen}
	f.subscriptions = append(f.subscriptions, sub)
	return sub, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscriptions)
}

func (f *fakeSource) emit(t *testing.T, event trackingout.Event) {
	t.Helper()
	f.mu.Lock()
	sub := f.subscriptions[len(f.subscriptions)-1]
	f.mu.Unlock()
	select {
	case sub.events <- event:
	case <-time.After(2 * time.Second):
		t.Fatalf("nobody consumed source event %+v", event)
	}
}

type fakeSaver struct {
	mu     sync.Mutex
	counts []int64
	fail   map[int]bool
	calls  chan int64
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{fail: map[int]bool{}, calls: make(chan int64, 16)}
}

func (s *fakeSaver) SaveCount(_ context.Context, count int64) error {
	s.mu.Lock()
	s.counts = append(s.counts, count)
	fail := s.fail[len(s.counts)]
	s.mu.Unlock()
	s.calls <- count
	if fail {
		return errors.New("insert failed")
	}
	return nil
}

func (s *fakeSaver) saved() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.counts...)
}

type sequentialIDs struct{ n int }

func (s *sequentialIDs) New() string {
	s.n++
	return fmt.Sprintf("session-%d", s.n)
}

type harness struct {
	uc     trackingin.Usecase
	source *fakeSource
	saver  *fakeSaver
	clock  *clock.FakeClock
	cancel context.CancelFunc
	runErr chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	source := &fakeSource{}
	saver := newFakeSaver()
	uc := usecase.NewInteractor(
		service.NewEngine(nil),
		service.NewPeriodicSaver(clk, saver, nil),
		source,
		&sequentialIDs{},
		time.Minute,
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- uc.Run(ctx) }()
	t.Cleanup(cancel)
	return &harness{uc: uc, source: source, saver: saver, clock: clk, cancel: cancel, runErr: runErr}
}

func (h *harness) waitCount(t *testing.T, want int64) dto.StateOutput {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		state, err := h.uc.State(context.Background())
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if state.DisplayedCount == want {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("displayed count never reached %d, last %+v", want, state)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestInitialStateBeforePermission(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	state, err := h.uc.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Started || !state.SensorAvailable || state.DisplayedCount != 0 || state.RawStepCount != nil || state.Baseline != nil {
		t.Fatalf("unexpected initial state %+v", state)
	}
	if state.Phase != "not_started" || state.SessionID != "" {
		t.Fatalf("unexpected initial phase/session %+v", state)
	}
	if h.source.count() != 0 {
		t.Fatalf("source must not be subscribed before permission")
	}
}

func TestPermissionGrantedIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.uc.PermissionGranted(ctx)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	second, err := h.uc.PermissionGranted(ctx)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if !first.Started || first.Phase != "tracking" {
		t.Fatalf("grant should start tracking, got %+v", first)
	}
	if first.SessionID != second.SessionID || first.SessionID == "" {
		t.Fatalf("session id should be assigned once, got %q and %q", first.SessionID, second.SessionID)
	}
	if h.source.count() != 1 {
		t.Fatalf("expected exactly one subscription, got %d", h.source.count())
	}
	if h.clock.ActiveTickers() != 1 {
		t.Fatalf("expected exactly one save timer, got %d", h.clock.ActiveTickers())
	}
	if !second.Saving {
		t.Fatalf("state should report periodic saving after grant")
	}
}

func TestReadingsAndResetFlowThroughSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant: %v", err)
	}

	h.source.emit(t, trackingout.Event{Raw: 1000})
	state := h.waitCount(t, 0)
	for state.RawStepCount == nil {
		state = h.waitCount(t, 0)
	}
	if *state.RawStepCount != 1000 || *state.Baseline != 1000 {
		t.Fatalf("first reading should set baseline, got %+v", state)
	}
	h.source.emit(t, trackingout.Event{Raw: 1010})
	h.waitCount(t, 10)

	reset, err := h.uc.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.DisplayedCount != 0 || *reset.Baseline != 1010 {
		t.Fatalf("reset should zero against last raw, got %+v", reset)
	}
	now, _ := h.uc.State(ctx)
	if now.DisplayedCount != 0 {
		t.Fatalf("state right after reset should be 0, got %d", now.DisplayedCount)
	}

	h.source.emit(t, trackingout.Event{Raw: 1015})
	h.waitCount(t, 5)
}

func TestSourceUnavailableSticks(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant: %v", err)
	}
	h.source.emit(t, trackingout.Event{Err: apperrors.ErrSourceUnavailable})

	deadline := time.Now().Add(2 * time.Second)
	for {
		state, _ := h.uc.State(ctx)
		if !state.SensorAvailable {
			if state.Phase != "unavailable" {
				t.Fatalf("expected unavailable phase, got %+v", state)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sensor never reported unavailable")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant after unavailable: %v", err)
	}
	if _, err := h.uc.Reset(ctx); err != nil {
		t.Fatalf("reset after unavailable: %v", err)
	}
	state, _ := h.uc.State(ctx)
	if state.SensorAvailable {
		t.Fatalf("nothing may re-enable the sensor within a session")
	}
	if h.source.count() != 1 {
		t.Fatalf("no automatic resubscribe expected, got %d", h.source.count())
	}
}

func TestSubscribeFailureMarksUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.source.subscribeErr = errors.New("no such sensor")
	state, err := h.uc.PermissionGranted(context.Background())
	if err != nil {
		t.Fatalf("grant should not fail on a missing source: %v", err)
	}
	if state.SensorAvailable || !state.Started {
		t.Fatalf("expected started but unavailable, got %+v", state)
	}
}

func TestPeriodicSaveUsesCurrentCountAndSurvivesFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.saver.fail[1] = true
	ctx := context.Background()
	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant: %v", err)
	}
	h.source.emit(t, trackingout.Event{Raw: 500})
	h.source.emit(t, trackingout.Event{Raw: 530})
	h.waitCount(t, 30)

	h.clock.Advance(59 * time.Second)
	if len(h.saver.saved()) != 0 {
		t.Fatalf("no save expected before one period")
	}
	h.clock.Advance(time.Second)
	if got := <-h.saver.calls; got != 30 {
		t.Fatalf("expected first save of 30, got %d", got)
	}

	h.source.emit(t, trackingout.Event{Raw: 540})
	h.waitCount(t, 40)
	h.clock.Advance(time.Minute)
	select {
	case got := <-h.saver.calls:
		if got != 40 {
			t.Fatalf("expected second save of 40, got %d", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("tick after a failed save did not fire")
	}
}

func TestTeardownStopsSaverAndSource(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant: %v", err)
	}
	h.source.emit(t, trackingout.Event{Raw: 10})

	h.cancel()
	select {
	case err := <-h.runErr:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not tear down")
	}
	select {
	case <-h.source.subscriptions[0].closed:
	default:
		t.Fatalf("subscription must be closed on teardown")
	}
	if h.clock.ActiveTickers() != 0 {
		t.Fatalf("save timer outlived the session")
	}
	if state, _ := h.uc.State(ctx); state.Saving {
		t.Fatalf("state should stop reporting saving after teardown")
	}
	h.clock.Advance(time.Hour)
	if len(h.saver.saved()) != 0 {
		t.Fatalf("no saves expected after teardown")
	}

	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant after start is still a no-op: %v", err)
	}
	if _, err := h.uc.Reset(ctx); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("expected session closed, got %v", err)
	}
	if err := h.uc.Run(ctx); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("a session runs once, got %v", err)
	}
}

func TestGrantAfterTeardownIsRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.cancel()
	<-h.runErr
	if _, err := h.uc.PermissionGranted(context.Background()); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("expected session closed, got %v", err)
	}
}

func TestWatchStreamsState(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := h.uc.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if _, err := h.uc.PermissionGranted(ctx); err != nil {
		t.Fatalf("grant: %v", err)
	}
	h.source.emit(t, trackingout.Event{Raw: 70})
	h.source.emit(t, trackingout.Event{Raw: 77})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.DisplayedCount == 7 {
				return
			}
		case <-deadline:
			t.Fatalf("never observed displayed count 7")
		}
	}
}

func TestTeardownDoesNotWaitOnSourceThatIgnoresClose(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.source.leaveOpen = true
	if _, err := h.uc.PermissionGranted(context.Background()); err != nil {
		t.Fatalf("grant: %v", err)
	}
	h.source.emit(t, trackingout.Event{Raw: 3})

	h.cancel()
	select {
	case err := <-h.runErr:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("teardown hung on a subscription that never closes its events")
	}
}
