// Package classifier decides whether a movement was intentional. It provides
// a rule-based heuristic that needs no training and a small per-user neural
// network trained on calibration data.
package classifier

import (
	"errors"

	"github.com/ayusman/mudra/internal/features"
)

// Decision thresholds. The trainable model uses a stricter cutoff because a
// personalized model is expected to tolerate fewer false positives.
const (
	DefaultHeuristicThreshold = 0.55
	DefaultTrainableThreshold = 0.65
)

// Verdict sources.
const (
	SourceHeuristic = "heuristic"
	SourceTrainable = "trainable"
	SourceRemote    = "remote"
)

var (
	// ErrNoModel is returned when no trained model is loaded.
	ErrNoModel = errors.New("no trained model")

	// ErrTrainingInProgress is returned when a training task is already running.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrInsufficientData is returned when the training set is too small or
	// lacks one of the classes.
	ErrInsufficientData = errors.New("insufficient training data")
)

// Verdict is the outcome of classifying one movement.
type Verdict struct {
	Intentional bool    `json:"isIntentional"`
	Confidence  float64 `json:"confidence"` // certainty of Intentional, 0.0-1.0
	Score       float64 `json:"score"`      // raw intentionality score or probability
	Source      string  `json:"source"`
}

func newVerdict(score, threshold float64, source string) Verdict {
	intentional := score > threshold
	confidence := score
	if !intentional {
		confidence = 1 - score
	}
	return Verdict{
		Intentional: intentional,
		Confidence:  confidence,
		Score:       score,
		Source:      source,
	}
}

// Example is one labeled movement used for training.
type Example struct {
	Features    features.MovementFeatures
	Intentional bool
}

// ProgressFunc receives the fraction of training completed, in [0,1].
type ProgressFunc func(progress float64)

func classCounts(examples []Example) (intentional, unintentional int) {
	for _, e := range examples {
		if e.Intentional {
			intentional++
		} else {
			unintentional++
		}
	}
	return intentional, unintentional
}
