package domain

// Phase is the tracker lifecycle. Unavailable is terminal.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseTracking
	PhaseUnavailable
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseTracking:
		return "tracking"
	case PhaseUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// State is a value snapshot of the tracker. Copies never alias.
type State struct {
	Phase           Phase
	RawStepCount    int64
	HasRaw          bool
	Baseline        int64
	HasBaseline     bool
	DisplayedCount  int64
	SensorAvailable bool
	Started         bool
}

// Tracker turns raw counter readings into a count relative to a
// baseline. It is not safe for concurrent use; the engine owns it.
type Tracker struct {
	state State
}

func NewTracker() *Tracker {
	return &Tracker{state: State{Phase: PhaseNotStarted, SensorAvailable: true}}
}

func (t *Tracker) State() State {
	return t.state
}

func (t *Tracker) Start() {
	if t.state.Phase != PhaseNotStarted {
		return
	}
	t.state.Phase = PhaseTracking
	t.state.Started = true
}

// Observe applies one raw reading and reports whether it changed state.
// The first reading after the baseline is cleared becomes the baseline.
// A reading below the baseline yields a negative count; a source restart
// is indistinguishable from noise here, so it is not corrected.
func (t *Tracker) Observe(raw int64) bool {
	if t.state.Phase == PhaseUnavailable {
		return false
	}
	if t.state.Phase == PhaseNotStarted {
		t.state.Phase = PhaseTracking
		t.state.Started = true
	}
	if !t.state.HasBaseline {
		t.state.Baseline = raw
		t.state.HasBaseline = true
		t.state.DisplayedCount = 0
	} else {
		t.state.DisplayedCount = raw - t.state.Baseline
	}
	t.state.RawStepCount = raw
	t.state.HasRaw = true
	return true
}

func (t *Tracker) MarkUnavailable() {
	t.state.Phase = PhaseUnavailable
	t.state.SensorAvailable = false
}

// Reset re-baselines on the last raw reading right away. Without any
// reading the baseline stays unset and the next reading claims it.
func (t *Tracker) Reset() {
	if t.state.HasRaw {
		t.state.Baseline = t.state.RawStepCount
		t.state.HasBaseline = true
	}
	t.state.DisplayedCount = 0
}
