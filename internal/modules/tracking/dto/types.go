package dto

type StateOutput struct {
	SessionID       string
	Phase           string
	Started         bool
	SensorAvailable bool
	DisplayedCount  int64
	Saving          bool
	RawStepCount    *int64
	Baseline        *int64
}
