package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stepcounter/internal/modules/tracking/domain"
	"stepcounter/internal/modules/tracking/dto"
	trackingin "stepcounter/internal/modules/tracking/port/in"
	trackingout "stepcounter/internal/modules/tracking/port/out"
	"stepcounter/internal/modules/tracking/service"
	apperrors "stepcounter/internal/platform/errors"
	"stepcounter/internal/platform/id"
	"stepcounter/internal/platform/logging"
)

// Interactor coordinates one tracking session: the engine loop runs for
// the lifetime of Run, and the source and periodic saver are started by
// the first PermissionGranted.
type Interactor struct {
	engine     *service.Engine
	saver      *service.PeriodicSaver
	source     trackingout.StepSource
	ids        id.Generator
	logger     *slog.Logger
	savePeriod time.Duration

	runCtx context.Context
	cancel context.CancelFunc
	ran    atomic.Bool

	mu        sync.Mutex
	started   bool
	sessionID string
	sub       trackingout.Subscription
	pump      sync.WaitGroup
}

func NewInteractor(
	engine *service.Engine,
	saver *service.PeriodicSaver,
	source trackingout.StepSource,
	ids id.Generator,
	savePeriod time.Duration,
	logger *slog.Logger,
) trackingin.Usecase {
	runCtx, cancel := context.WithCancel(context.Background())
	return &Interactor{
		runCtx:     runCtx,
		cancel:     cancel,
		engine:     engine,
		saver:      saver,
		source:     source,
		ids:        ids,
		savePeriod: savePeriod,
		logger:     logging.OrDiscard(logger),
	}
}

// Run blocks until ctx ends. Whatever way it returns, the saver is
// cancelled and the source subscription closed before it does. A
// session runs once.
func (i *Interactor) Run(ctx context.Context) error {
	if !i.ran.CompareAndSwap(false, true) {
		return apperrors.ErrSessionClosed
	}
	stop := context.AfterFunc(ctx, i.cancel)
	defer stop()
	defer i.teardown()
	return i.engine.Run(i.runCtx)
}

func (i *Interactor) teardown() {
	i.saver.Cancel()
	i.cancel()

	i.mu.Lock()
	sub := i.sub
	i.sub = nil
	sessionID := i.sessionID
	i.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			i.logger.Warn("close step source", "error", err)
		}
	}
	i.pump.Wait()
	// A PermissionGranted racing the first cancel may have restarted the saver.
	i.saver.Cancel()
	if sessionID != "" {
		i.logger.Info("tracking session ended", "session", sessionID, "count", i.engine.DisplayedCount())
	}
}

// PermissionGranted starts tracking once. Later calls only report state.
// Before Run is called it blocks until the engine loop is up or ctx ends.
func (i *Interactor) PermissionGranted(ctx context.Context) (dto.StateOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return i.output(i.engine.Snapshot()), nil
	}
	if i.runCtx.Err() != nil {
		return dto.StateOutput{}, apperrors.ErrSessionClosed
	}
	if err := i.engine.Start(ctx); err != nil {
		return dto.StateOutput{}, err
	}
	i.started = true
	i.sessionID = i.ids.New()
	i.logger.Info("permission granted, tracking started", "session", i.sessionID)

	sub, err := i.source.Subscribe(i.runCtx)
	if err != nil {
		i.logger.Warn("subscribe step source", "error", err)
		if markErr := i.engine.MarkUnavailable(ctx, errors.Join(apperrors.ErrSourceUnavailable, err)); markErr != nil {
			return dto.StateOutput{}, markErr
		}
	} else {
		i.sub = sub
		i.pump.Add(1)
		go i.consume(i.runCtx, sub)
	}

	i.saver.Start(i.runCtx, i.engine.DisplayedCount, i.savePeriod)
	return i.output(i.engine.Snapshot()), nil
}

// consume forwards source events until the source ends or the session
// does. It never relies on the source closing its channel to stop.
func (i *Interactor) consume(ctx context.Context, sub trackingout.Subscription) {
	defer i.pump.Done()
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				i.logger.Info("step source ended")
				return
			}
			if event.Err != nil {
				_ = i.engine.MarkUnavailable(ctx, event.Err)
				return
			}
			if err := i.engine.Feed(ctx, event.Raw); err != nil {
				return
			}
		}
	}
}

func (i *Interactor) Reset(ctx context.Context) (dto.StateOutput, error) {
	state, err := i.engine.Reset(ctx)
	if err != nil {
		return dto.StateOutput{}, err
	}
	i.logger.Info("step count reset", "baseline", state.Baseline, "has_baseline", state.HasBaseline)
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.output(state), nil
}

func (i *Interactor) State(context.Context) (dto.StateOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.output(i.engine.Snapshot()), nil
}

func (i *Interactor) Watch(ctx context.Context) (<-chan dto.StateOutput, error) {
	src := i.engine.Watch(ctx)
	out := make(chan dto.StateOutput, 1)
	go func() {
		defer close(out)
		for state := range src {
			i.mu.Lock()
			converted := i.output(state)
			i.mu.Unlock()
			select {
			case out <- converted:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// output must be called with i.mu held. Lock order is i.mu, then the
// saver's own lock.
func (i *Interactor) output(state domain.State) dto.StateOutput {
	out := dto.StateOutput{
		SessionID:       i.sessionID,
		Phase:           state.Phase.String(),
		Started:         state.Started,
		SensorAvailable: state.SensorAvailable,
		DisplayedCount:  state.DisplayedCount,
		Saving:          i.saver.Running(),
	}
	if state.HasRaw {
		raw := state.RawStepCount
		out.RawStepCount = &raw
	}
	if state.HasBaseline {
		baseline := state.Baseline
		out.Baseline = &baseline
	}
	return out
}
