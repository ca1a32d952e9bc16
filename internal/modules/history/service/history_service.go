package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"stepcounter/internal/modules/history/domain"
	historyout "stepcounter/internal/modules/history/port/out"
	"stepcounter/internal/platform/clock"
	apperrors "stepcounter/internal/platform/errors"
	"stepcounter/internal/platform/logging"
)

type HistoryService struct {
	clock  clock.Clock
	store  historyout.RecordStore
	logger *slog.Logger

	mu        sync.Mutex
	nextID    int
	watchers  map[int]chan domain.Latest
	published domain.Latest
}

func NewHistoryService(clock clock.Clock, store historyout.RecordStore, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		clock:    clock,
		store:    store,
		logger:   logging.OrDiscard(logger),
		watchers: map[int]chan domain.Latest{},
	}
}

// Save stamps count with the current time and appends it. Watchers are
// notified when the insert becomes the new latest record; a record
// stamped before the current latest (clock stepped back) changes nothing
// they can observe.
func (s *HistoryService) Save(ctx context.Context, count int64) (domain.Record, error) {
	record := domain.NewRecord(s.clock.Now(), count)
	if err := record.Validate(); err != nil {
		return domain.Record{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	saved, err := s.store.Insert(ctx, record)
	if err != nil {
		return domain.Record{}, err
	}
	s.logger.Debug("saved step count", "count", saved.Count, "timestamp", saved.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.watchers) == 0 {
		return saved, nil
	}
	if s.published.Found && !saved.Newer(s.published.Record) {
		return saved, nil
	}
	s.published = domain.Latest{Record: saved, Found: true}
	for _, ch := range s.watchers {
		offer(ch, s.published)
	}
	return saved, nil
}

// Latest never fails: an empty or unreadable store reads as "no prior value".
func (s *HistoryService) Latest(ctx context.Context) domain.Latest {
	return s.latest(ctx)
}

func (s *HistoryService) latest(ctx context.Context) domain.Latest {
	record, err := s.store.Latest(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("read latest step count failed", "error", err)
		}
		return domain.Latest{}
	}
	return domain.Latest{Record: record, Found: true}
}

func (s *HistoryService) Recent(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", apperrors.ErrInvalidInput)
	}
	return s.store.Recent(ctx, limit)
}

// Watch emits the current latest value, then a fresh one after every
// save, until ctx ends. Slow readers only ever see the newest value.
func (s *HistoryService) Watch(ctx context.Context) <-chan domain.Latest {
	ch := make(chan domain.Latest, 1)

	s.mu.Lock()
	key := s.nextID
	s.nextID++
	s.watchers[key] = ch
	s.published = s.latest(ctx)
	offer(ch, s.published)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, key)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// offer replaces any unread value in ch. Callers hold s.mu, which makes
// them the only sender.
func offer(ch chan domain.Latest, v domain.Latest) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
