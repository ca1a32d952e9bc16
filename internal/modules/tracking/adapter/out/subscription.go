package out

import (
	"context"

	trackingout "stepcounter/internal/modules/tracking/port/out"
)

// subscription is the handle shared by the step sources. The producer
// goroutine calls finish when it exits; Close waits for that, so nothing
// is emitted after Close returns.
type subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan trackingout.Event
	done   chan struct{}
}

func newSubscription(parent context.Context) *subscription {
	ctx, cancel := context.WithCancel(parent)
	return &subscription{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan trackingout.Event, 16),
		done:   make(chan struct{}),
	}
}

func (s *subscription) Events() <-chan trackingout.Event {
	return s.events
}

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *subscription) emit(event trackingout.Event) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- event:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *subscription) finish() {
	close(s.events)
	close(s.done)
}
