package out

import "context"

// Event is one item from a step source: a raw reading, or a terminal
// Err meaning the source is unavailable for the rest of the session.
type Event struct {
	Raw int64
	Err error
}

// Subscription is the cancellation handle of a running source.
// Events is closed after Close, after a terminal Err, or when the
// producer runs out.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// StepSource is a cold producer; every Subscribe starts a fresh stream.
type StepSource interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

type CountSaver interface {
	SaveCount(ctx context.Context, count int64) error
}
