package domain_test

import (
	"testing"
	"time"

	"stepcounter/internal/modules/history/domain"
)

func TestNewRecordUsesEpochMillis(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 8, 0, 0, 5_000_000, time.UTC)
	record := domain.NewRecord(at, 42)
	if record.Timestamp != at.UnixMilli() || record.Count != 42 {
		t.Fatalf("unexpected record %+v", record)
	}
	if !record.Time().Equal(at) {
		t.Fatalf("expected round trip to %v, got %v", at, record.Time())
	}
	if err := record.Validate(); err != nil {
		t.Fatalf("record should be valid: %v", err)
	}
	if err := (domain.Record{Count: 1}).Validate(); err == nil {
		t.Fatalf("zero timestamp should fail")
	}
}

func TestNewerBreaksTiesByInsertionOrder(t *testing.T) {
	t.Parallel()
	older := domain.Record{ID: 1, Timestamp: 1000, Count: 5}
	newer := domain.Record{ID: 2, Timestamp: 2000, Count: 3}
	if !newer.Newer(older) || older.Newer(newer) {
		t.Fatalf("greater timestamp should win")
	}
	tieFirst := domain.Record{ID: 3, Timestamp: 2000, Count: 7}
	if !tieFirst.Newer(newer) {
		t.Fatalf("later insert should win a timestamp tie")
	}
}
