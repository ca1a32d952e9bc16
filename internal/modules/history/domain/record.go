package domain

import (
	"fmt"
	"time"
)

// Record is one persisted snapshot of the displayed step count. Records
// are append-only; ID reflects insertion order.
type Record struct {
	ID        int64
	Timestamp int64
	Count     int64
}

func NewRecord(at time.Time, count int64) Record {
	return Record{Timestamp: at.UnixMilli(), Count: count}
}

func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

func (r Record) Validate() error {
	if r.Timestamp <= 0 {
		return fmt.Errorf("record timestamp must be positive")
	}
	return nil
}

// Newer reports whether r supersedes other as the latest record: the
// greater timestamp wins, ties go to the later insert.
func (r Record) Newer(other Record) bool {
	if r.Timestamp != other.Timestamp {
		return r.Timestamp > other.Timestamp
	}
	return r.ID > other.ID
}

// Latest is the observable "most recent record" value; Found is false
// while the store is empty or unreadable.
type Latest struct {
	Record Record
	Found  bool
}
