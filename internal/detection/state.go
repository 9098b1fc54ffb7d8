package detection

import (
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/pose"
)

// State is everything the orchestrator mutates per frame: the pose history,
// the movement tracker, refractory timestamps and the latest features seen
// for each landmark.
type State struct {
	History *pose.History
	Tracker *features.Tracker

	lastIntentional map[pose.LandmarkName]int64
	latest          map[pose.LandmarkName]features.MovementFeatures
}

// NewState creates an empty State.
func NewState(capacity int, fc features.Config) *State {
	return &State{
		History:         pose.NewHistory(capacity),
		Tracker:         features.NewTracker(fc),
		lastIntentional: make(map[pose.LandmarkName]int64),
		latest:          make(map[pose.LandmarkName]features.MovementFeatures),
	}
}

// LastIntentional returns the timestamp of the last intentional emission for
// name.
func (s *State) LastIntentional(name pose.LandmarkName) (int64, bool) {
	ts, ok := s.lastIntentional[name]
	return ts, ok
}

// Latest returns the features most recently extracted for name.
func (s *State) Latest(name pose.LandmarkName) (features.MovementFeatures, bool) {
	f, ok := s.latest[name]
	return f, ok
}

// Reset clears the history and all per-landmark state.
func (s *State) Reset() {
	s.History.Reset()
	s.Tracker.Reset()
	clear(s.lastIntentional)
	clear(s.latest)
}
