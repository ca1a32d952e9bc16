package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	trackingout "stepcounter/internal/modules/tracking/port/out"
	"stepcounter/internal/platform/clock"
	"stepcounter/internal/platform/logging"
)

const DefaultSavePeriod = 60 * time.Second

// PeriodicSaver samples a value on a fixed period and hands it to a
// CountSaver. The first save happens one full period after Start.
type PeriodicSaver struct {
	clock  clock.Clock
	saver  trackingout.CountSaver
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPeriodicSaver(clock clock.Clock, saver trackingout.CountSaver, logger *slog.Logger) *PeriodicSaver {
	return &PeriodicSaver{clock: clock, saver: saver, logger: logging.OrDiscard(logger)}
}

// Start replaces any running loop. A non-positive period selects
// DefaultSavePeriod. The loop also ends when ctx does.
func (p *PeriodicSaver) Start(ctx context.Context, provider func() int64, period time.Duration) {
	if period <= 0 {
		period = DefaultSavePeriod
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := p.clock.NewTicker(period)
	p.cancel = cancel
	p.done = done
	p.logger.Debug("periodic save started", "period", period)
	go p.loop(runCtx, ticker, provider, done)
}

// Cancel stops the loop and waits for it to exit; no save starts after
// Cancel returns. Safe to call when nothing is running.
func (p *PeriodicSaver) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *PeriodicSaver) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *PeriodicSaver) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *PeriodicSaver) loop(ctx context.Context, ticker *clock.Ticker, provider func() int64, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.tick(ctx, provider)
		}
	}
}

func (p *PeriodicSaver) tick(ctx context.Context, provider func() int64) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("periodic save panicked", "panic", r)
		}
	}()
	count := provider()
	if err := p.saver.SaveCount(ctx, count); err != nil {
		p.logger.Warn("periodic save failed", "count", count, "error", err)
		return
	}
	p.logger.Debug("periodic save", "count", count)
}
