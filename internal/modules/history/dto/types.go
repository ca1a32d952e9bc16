package dto

import "time"

type SaveInput struct {
	Count int64
}

type RecordOutput struct {
	ID          int64
	TimestampMs int64
	SavedAt     time.Time
	Count       int64
}

type LatestOutput struct {
	Found  bool
	Record RecordOutput
}

type RecentInput struct {
	Limit int
}
