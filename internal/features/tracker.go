package features

import "github.com/ayusman/mudra/internal/pose"

// MovementState is the per-landmark movement phase.
type MovementState int

const (
	Idle MovementState = iota
	Moving
)

func (s MovementState) String() string {
	if s == Moving {
		return "moving"
	}
	return "idle"
}

type movement struct {
	state  MovementState
	startX float64
	startY float64
	startT int64
	peak   float64 // largest window magnitude seen while moving
}

// Tracker runs the Idle -> Moving -> Idle state machine for each landmark and
// fills the duration and reversal fields of extracted features. It is not
// safe for concurrent use.
type Tracker struct {
	startThreshold float64
	endThreshold   float64
	marks          map[pose.LandmarkName]*movement
}

// NewTracker creates a Tracker using the start and end thresholds of config.
func NewTracker(config Config) *Tracker {
	def := DefaultConfig()
	if config.StartThreshold <= 0 {
		config.StartThreshold = def.StartThreshold
	}
	if config.EndThreshold <= 0 {
		config.EndThreshold = def.EndThreshold
	}
	return &Tracker{
		startThreshold: config.StartThreshold,
		endThreshold:   config.EndThreshold,
		marks:          make(map[pose.LandmarkName]*movement),
	}
}

// Observe advances the state machine for name with the latest position and
// its freshly extracted features, then sets f.Duration and f.IsReversing.
//
// While Moving, Duration is the time since the movement started. On the
// Moving -> Idle transition Duration holds the final length of the movement
// and IsReversing reports whether the landmark ended closer to its start
// than half the largest window magnitude seen during the movement.
func (t *Tracker) Observe(name pose.LandmarkName, pos pose.Landmark, f *MovementFeatures) MovementState {
	m, ok := t.marks[name]
	if !ok {
		m = &movement{}
		t.marks[name] = m
	}

	switch m.state {
	case Idle:
		f.Duration = 0
		f.IsReversing = false
		if f.Magnitude > t.startThreshold {
			m.state = Moving
			m.startX, m.startY = pos.X, pos.Y
			m.startT = f.Timestamp
			m.peak = f.Magnitude
		}

	case Moving:
		if f.Magnitude > m.peak {
			m.peak = f.Magnitude
		}
		f.Duration = float64(f.Timestamp-m.startT) / 1000
		f.IsReversing = false
		if f.Magnitude < t.endThreshold {
			f.IsReversing = hypot(pos.X-m.startX, pos.Y-m.startY) < m.peak/2
			m.state = Idle
		}
	}

	return m.state
}

// Peek fills f.Duration and f.IsReversing as Observe would, without changing
// any tracked state.
func (t *Tracker) Peek(name pose.LandmarkName, pos pose.Landmark, f *MovementFeatures) {
	f.Duration = 0
	f.IsReversing = false

	m, ok := t.marks[name]
	if !ok || m.state != Moving {
		return
	}
	f.Duration = float64(f.Timestamp-m.startT) / 1000
	if f.Magnitude < t.endThreshold {
		peak := max(m.peak, f.Magnitude)
		f.IsReversing = hypot(pos.X-m.startX, pos.Y-m.startY) < peak/2
	}
}

// State returns the current phase of name.
func (t *Tracker) State(name pose.LandmarkName) MovementState {
	if m, ok := t.marks[name]; ok {
		return m.state
	}
	return Idle
}

// Reset returns every landmark to Idle.
func (t *Tracker) Reset() {
	clear(t.marks)
}
