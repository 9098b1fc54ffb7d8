// Package features derives per-landmark kinematic features from a window of
// pose history.
package features

import "github.com/ayusman/mudra/internal/pose"

// Direction is the dominant axis of a movement's endpoint displacement.
type Direction string

// Directions. Image coordinates grow downward, so positive dy is Down.
const (
	None  Direction = "none"
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// MovementFeatures describes the motion of one landmark over the most recent
// window of frames.
type MovementFeatures struct {
	VelocityX    float64   `json:"velocityX"`    // px/s
	VelocityY    float64   `json:"velocityY"`    // px/s
	Acceleration float64   `json:"acceleration"` // px/s²
	Jitter       float64   `json:"jitter"`       // px
	Direction    Direction `json:"direction"`
	IsSmooth     bool      `json:"isSmooth"`
	Magnitude    float64   `json:"magnitudeOfMovement"` // px
	Duration     float64   `json:"durationOfMovement"`  // seconds
	IsReversing  bool      `json:"isReversing"`
	Frequency    float64   `json:"frequencyOfMovement"` // Hz
	Steadiness   float64   `json:"steadiness"`
	PatternScore float64   `json:"patternScore"`
	Continuity   float64   `json:"continuity"`
	Timestamp    int64     `json:"timestamp"` // ms
}

// Speed returns the magnitude of the velocity vector.
func (f MovementFeatures) Speed() float64 {
	return hypot(f.VelocityX, f.VelocityY)
}

// Config holds the feature extraction tuning knobs.
type Config struct {
	// WindowSize is the number of recent frames examined (default: 15).
	WindowSize int

	// MinFrames is the minimum number of frames in the window carrying the
	// landmark above ConfidenceFloor (default: 10).
	MinFrames int

	// ConfidenceFloor is the minimum landmark confidence considered (0.0-1.0).
	ConfidenceFloor float64

	// MinSignificantMovement is the displacement in px below which jitter is 0.
	MinSignificantMovement float64

	// PauseThreshold is the per-step displacement in px below which a step
	// counts as paused.
	PauseThreshold float64

	// SmoothJitterMax is the largest jitter in px still considered smooth.
	SmoothJitterMax float64

	// DirectionDeadZone is the displacement in px below which direction is None.
	DirectionDeadZone float64

	// StartThreshold and EndThreshold are the magnitudes in px that move a
	// landmark from Idle to Moving and back.
	StartThreshold float64
	EndThreshold   float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		WindowSize:             15,
		MinFrames:              10,
		ConfidenceFloor:        0.5,
		MinSignificantMovement: 2.0,
		PauseThreshold:         0.5,
		SmoothJitterMax:        2.0,
		DirectionDeadZone:      5.0,
		StartThreshold:         10.0,
		EndThreshold:           5.0,
	}
}

// LandmarkFeatures pairs a landmark with its extracted features.
type LandmarkFeatures struct {
	Landmark pose.LandmarkName `json:"landmark"`
	Features MovementFeatures  `json:"features"`
}
