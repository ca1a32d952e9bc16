package out

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	trackingout "stepcounter/internal/modules/tracking/port/out"
	"stepcounter/internal/platform/clock"
	apperrors "stepcounter/internal/platform/errors"
	"stepcounter/internal/platform/logging"
)

// SysfsStepSource polls an IIO step counter attribute such as
// /sys/bus/iio/devices/iio:device0/in_steps_input. The first value is
// emitted at once, later values only when they change. A missing or
// unreadable attribute makes the source unavailable.
type SysfsStepSource struct {
	path     string
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func NewSysfsStepSource(path string, interval time.Duration, clock clock.Clock, logger *slog.Logger) trackingout.StepSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &SysfsStepSource{path: path, interval: interval, clock: clock, logger: logging.OrDiscard(logger)}
}

func (s *SysfsStepSource) Subscribe(ctx context.Context) (trackingout.Subscription, error) {
	sub := newSubscription(ctx)
	go s.poll(sub)
	return sub, nil
}

func (s *SysfsStepSource) poll(sub *subscription) {
	defer sub.finish()

	last, err := s.read()
	if err != nil {
		sub.emit(trackingout.Event{Err: err})
		return
	}
	s.logger.Debug("step counter attribute opened", "path", s.path, "raw", last)
	if !sub.emit(trackingout.Event{Raw: last}) {
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-ticker.C:
			raw, err := s.read()
			if err != nil {
				sub.emit(trackingout.Event{Err: err})
				return
			}
			if raw == last {
				continue
			}
			last = raw
			if !sub.emit(trackingout.Event{Raw: raw}) {
				return
			}
		}
	}
}

func (s *SysfsStepSource) read() (int64, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", apperrors.ErrSourceUnavailable, s.path, err)
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(string(payload)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", apperrors.ErrSourceUnavailable, s.path, err)
	}
	return raw, nil
}
