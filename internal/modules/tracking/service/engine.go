package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"stepcounter/internal/modules/tracking/domain"
	apperrors "stepcounter/internal/platform/errors"
	"stepcounter/internal/platform/logging"
)

type command struct {
	apply func(*domain.Tracker)
	done  chan struct{}
}

// Engine owns a Tracker inside a single goroutine. Mutations are
// messages applied in arrival order; reads load an immutable snapshot
// published after every change.
type Engine struct {
	logger  *slog.Logger
	cmds    chan command
	stopped chan struct{}
	running atomic.Bool
	state   atomic.Pointer[domain.State]

	mu       sync.Mutex
	closed   bool
	nextID   int
	watchers map[int]chan domain.State
}

func NewEngine(logger *slog.Logger) *Engine {
	e := &Engine{
		logger:   logging.OrDiscard(logger),
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
		watchers: map[int]chan domain.State{},
	}
	initial := domain.NewTracker().State()
	e.state.Store(&initial)
	return e
}

// Run applies commands until ctx ends. An engine runs at most once;
// afterwards every command fails with ErrSessionClosed.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return apperrors.ErrSessionClosed
	}
	defer e.shutdown()

	tracker := domain.NewTracker()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-e.cmds:
			before := tracker.State()
			cmd.apply(tracker)
			after := tracker.State()
			if after != before {
				if after.Phase != before.Phase {
					e.logger.Info("tracking phase changed", "from", before.Phase.String(), "to", after.Phase.String())
				}
				e.publish(after)
			}
			close(cmd.done)
		}
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	e.closed = true
	for key, ch := range e.watchers {
		close(ch)
		delete(e.watchers, key)
	}
	e.mu.Unlock()
	close(e.stopped)
}

func (e *Engine) publish(state domain.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Store(&state)
	for _, ch := range e.watchers {
		offer(ch, state)
	}
}

func (e *Engine) do(ctx context.Context, apply func(*domain.Tracker)) error {
	cmd := command{apply: apply, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return apperrors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// An accepted command is always applied before the loop looks at ctx again.
	<-cmd.done
	return nil
}

func (e *Engine) Start(ctx context.Context) error {
	return e.do(ctx, func(t *domain.Tracker) { t.Start() })
}

func (e *Engine) Feed(ctx context.Context, raw int64) error {
	return e.do(ctx, func(t *domain.Tracker) {
		if !t.Observe(raw) {
			e.logger.Debug("ignoring reading after source became unavailable", "raw", raw)
		}
	})
}

func (e *Engine) MarkUnavailable(ctx context.Context, cause error) error {
	return e.do(ctx, func(t *domain.Tracker) {
		e.logger.Warn("step source unavailable", "error", cause)
		t.MarkUnavailable()
	})
}

func (e *Engine) Reset(ctx context.Context) (domain.State, error) {
	var after domain.State
	err := e.do(ctx, func(t *domain.Tracker) {
		t.Reset()
		after = t.State()
	})
	if err != nil {
		return domain.State{}, err
	}
	return after, nil
}

func (e *Engine) Snapshot() domain.State {
	return *e.state.Load()
}

func (e *Engine) DisplayedCount() int64 {
	return e.state.Load().DisplayedCount
}

// Watch emits the current snapshot, then every change, until ctx ends
// or the engine stops. Readers that fall behind see only the newest.
func (e *Engine) Watch(ctx context.Context) <-chan domain.State {
	ch := make(chan domain.State, 1)

	e.mu.Lock()
	ch <- *e.state.Load()
	if e.closed {
		close(ch)
		e.mu.Unlock()
		return ch
	}
	key := e.nextID
	e.nextID++
	e.watchers[key] = ch
	e.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-e.stopped:
		}
		e.mu.Lock()
		if _, ok := e.watchers[key]; ok {
			delete(e.watchers, key)
			close(ch)
		}
		e.mu.Unlock()
	}()
	return ch
}

// offer replaces any unread value. Callers hold e.mu.
func offer(ch chan domain.State, state domain.State) {
	select {
	case <-ch:
	default:
	}
	ch <- state
}
