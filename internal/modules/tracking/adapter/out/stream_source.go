package out

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	trackingout "stepcounter/internal/modules/tracking/port/out"
	apperrors "stepcounter/internal/platform/errors"
	"stepcounter/internal/platform/logging"
)

// StreamStepSource reads newline-delimited raw counter values. Blank
// lines are skipped, malformed ones are logged and skipped, and the end
// of the stream ends the subscription without marking the source
// unavailable.
type StreamStepSource struct {
	name   string
	open   func() (io.ReadCloser, error)
	logger *slog.Logger
}

// NewReaderStepSource streams from r. r is consumed by the first
// subscription; later ones see whatever is left.
func NewReaderStepSource(name string, r io.Reader, logger *slog.Logger) trackingout.StepSource {
	return &StreamStepSource{
		name:   name,
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		logger: logging.OrDiscard(logger),
	}
}

// NewFileStepSource reopens path on every subscription.
func NewFileStepSource(path string, logger *slog.Logger) trackingout.StepSource {
	return &StreamStepSource{
		name:   path,
		open:   func() (io.ReadCloser, error) { return os.Open(path) },
		logger: logging.OrDiscard(logger),
	}
}

type scannedLine struct {
	text string
	err  error
}

func (s *StreamStepSource) Subscribe(ctx context.Context) (trackingout.Subscription, error) {
	sub := newSubscription(ctx)
	rc, err := s.open()
	if err != nil {
		go func() {
			defer sub.finish()
			sub.emit(trackingout.Event{Err: fmt.Errorf("%w: open %s: %v", apperrors.ErrSourceUnavailable, s.name, err)})
		}()
		return sub, nil
	}

	// The scanner may sit in a blocking Read (stdin); it runs apart from
	// the producer so Close never waits on it.
	lines := make(chan scannedLine)
	go scanLines(sub.ctx, rc, lines)
	go s.produce(sub, rc, lines)
	return sub, nil
}

func scanLines(ctx context.Context, r io.Reader, lines chan<- scannedLine) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scannedLine{text: scanner.Text()}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case lines <- scannedLine{err: err}:
		case <-ctx.Done():
		}
	}
}

func (s *StreamStepSource) produce(sub *subscription, rc io.Closer, lines <-chan scannedLine) {
	defer sub.finish()
	defer rc.Close()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				s.logger.Debug("step stream ended", "source", s.name)
				return
			}
			if line.err != nil {
				sub.emit(trackingout.Event{Err: fmt.Errorf("%w: read %s: %v", apperrors.ErrSourceUnavailable, s.name, line.err)})
				return
			}
			text := strings.TrimSpace(line.text)
			if text == "" {
				continue
			}
			raw, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				s.logger.Warn("skipping malformed step reading", "source", s.name, "line", text)
				continue
			}
			if !sub.emit(trackingout.Event{Raw: raw}) {
				return
			}
		}
	}
}
