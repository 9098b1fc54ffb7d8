// Package calibration collects labeled movement samples from a user, scores
// whether they are good enough to train on, and gates training.
package calibration

import (
	"context"
	"fmt"
	"sync"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/pose"
)

// Sample is one labeled movement of one landmark.
type Sample struct {
	Landmark      pose.LandmarkName         `json:"landmark"`
	Features      features.MovementFeatures `json:"features"`
	IsIntentional bool                      `json:"isIntentional"`
}

// FeatureSource provides current features for every tracked landmark that
// has them.
type FeatureSource interface {
	ExtractAll() []features.LandmarkFeatures
}

// Trainer trains a classifier on labeled examples.
type Trainer interface {
	Train(ctx context.Context, examples []classifier.Example, progress classifier.ProgressFunc) (classifier.TrainingResult, error)
}

// Config holds the quality scoring and training gate parameters.
type Config struct {
	TargetSamples      int     // sample count for a full count score
	BalanceCeiling     float64 // balance ratio for a full balance score
	DiversityTarget    int     // distinct movement kinds for a full diversity score
	MagnitudeBucket    float64 // px per magnitude bucket
	MaxMagnitudeBucket int

	ProbeMinSamples    int
	ProbeDefault       float64 // separability score when the probe cannot run
	ProbeTrainFraction float64
	ProbeSeed          uint64

	MinTrainSamples      int
	MinTrainBalance      float64 // below this ratio training is refused
	LowConfidenceBalance float64 // below this ratio training is flagged
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		TargetSamples:        100,
		BalanceCeiling:       0.8,
		DiversityTarget:      16,
		MagnitudeBucket:      20,
		MaxMagnitudeBucket:   4,
		ProbeMinSamples:      10,
		ProbeDefault:         12,
		ProbeTrainFraction:   0.7,
		ProbeSeed:            42,
		MinTrainSamples:      20,
		MinTrainBalance:      0.2,
		LowConfidenceBalance: 0.8,
	}
}

// Deficiency names why the calibration data cannot be trained on.
type Deficiency string

const (
	TooFewSamples    Deficiency = "too_few_samples"
	MissingClass     Deficiency = "missing_class"
	ExtremeImbalance Deficiency = "extreme_imbalance"
)

// DataError reports calibration data that cannot be trained on.
type DataError struct {
	Deficiency    Deficiency
	Intentional   int
	Unintentional int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("calibration data %s: %d intentional, %d unintentional",
		e.Deficiency, e.Intentional, e.Unintentional)
}

func (e *DataError) Unwrap() error {
	return classifier.ErrInsufficientData
}

// TrainResult is the outcome of a gated training run.
type TrainResult struct {
	classifier.TrainingResult
	LowConfidence bool      `json:"lowConfidence"`
	Quality       Breakdown `json:"quality"`
}

// Manager accumulates calibration samples and keeps their quality score
// current. It is safe for concurrent use.
type Manager struct {
	config Config
	source FeatureSource
	log    logger.Logger

	mu      sync.RWMutex
	samples []Sample
	quality Breakdown
}

// NewManager creates a Manager that pulls features from source.
func NewManager(config Config, source FeatureSource, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultConfig()
	if config.TargetSamples <= 0 {
		config.TargetSamples = def.TargetSamples
	}
	if config.BalanceCeiling <= 0 {
		config.BalanceCeiling = def.BalanceCeiling
	}
	if config.DiversityTarget <= 0 {
		config.DiversityTarget = def.DiversityTarget
	}
	if config.MagnitudeBucket <= 0 {
		config.MagnitudeBucket = def.MagnitudeBucket
	}
	if config.MaxMagnitudeBucket <= 0 {
		config.MaxMagnitudeBucket = def.MaxMagnitudeBucket
	}
	if config.ProbeTrainFraction <= 0 || config.ProbeTrainFraction >= 1 {
		config.ProbeTrainFraction = def.ProbeTrainFraction
	}
	return &Manager{
		config: config,
		source: source,
		log:    log,
	}
}

// AddSample labels the current movement of every tracked landmark that has
// features and returns the samples added.
func (m *Manager) AddSample(isIntentional bool) []Sample {
	current := m.source.ExtractAll()
	if len(current) == 0 {
		return nil
	}

	added := make([]Sample, len(current))
	for i, lf := range current {
		added[i] = Sample{
			Landmark:      lf.Landmark,
			Features:      lf.Features,
			IsIntentional: isIntentional,
		}
	}
	m.AddSamples(added...)

	m.log.Debug(context.Background(), "calibration samples added",
		logger.Int("count", len(added)),
		logger.Bool("intentional", isIntentional))
	return added
}

// AddSamples appends samples, typically restored from storage.
func (m *Manager) AddSamples(samples ...Sample) {
	if len(samples) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	m.quality = score(m.config, m.samples)
}

// Samples returns a copy of the collected samples.
func (m *Manager) Samples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Sample(nil), m.samples...)
}

// Counts returns the number of intentional and unintentional samples.
func (m *Manager) Counts() (intentional, unintentional int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return counts(m.samples)
}

// Quality returns the current quality score, 0-100.
func (m *Manager) Quality() float64 {
	return m.Breakdown().Total
}

// Breakdown returns the current quality score and its components.
func (m *Manager) Breakdown() Breakdown {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quality
}

// Recompute rescores the collected samples.
func (m *Manager) Recompute() Breakdown {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quality = score(m.config, m.samples)
	return m.quality
}

// Clear drops all samples and resets quality to zero.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
	m.quality = Breakdown{}
}

// Check reports whether the collected samples can be trained on. It returns
// a *DataError naming the deficiency, and whether the data is imbalanced
// enough that the resulting model should be treated as low confidence.
func (m *Manager) Check() (lowConfidence bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check(m.samples)
}

func (m *Manager) check(samples []Sample) (bool, error) {
	pos, neg := counts(samples)
	fail := func(d Deficiency) error {
		return &DataError{Deficiency: d, Intentional: pos, Unintentional: neg}
	}

	switch {
	case len(samples) < m.config.MinTrainSamples:
		return false, fail(TooFewSamples)
	case pos == 0 || neg == 0:
		return false, fail(MissingClass)
	}

	ratio := balanceRatio(samples)
	if ratio < m.config.MinTrainBalance {
		return false, fail(ExtremeImbalance)
	}
	return ratio < m.config.LowConfidenceBalance, nil
}

// Train gates on the collected samples and trains trainer on them. Samples
// are copied before training starts, so collection may continue meanwhile.
func (m *Manager) Train(ctx context.Context, trainer Trainer, progress classifier.ProgressFunc) (TrainResult, error) {
	m.mu.RLock()
	samples := append([]Sample(nil), m.samples...)
	quality := m.quality
	m.mu.RUnlock()

	lowConfidence, err := m.check(samples)
	if err != nil {
		return TrainResult{}, err
	}

	res, err := trainer.Train(ctx, Examples(samples), progress)
	if err != nil {
		return TrainResult{}, err
	}

	if lowConfidence {
		m.log.Warn(ctx, "trained on imbalanced calibration data",
			logger.Float64("balance_ratio", balanceRatio(samples)))
	}
	return TrainResult{TrainingResult: res, LowConfidence: lowConfidence, Quality: quality}, nil
}

// Examples converts samples to classifier training examples.
func Examples(samples []Sample) []classifier.Example {
	out := make([]classifier.Example, len(samples))
	for i, s := range samples {
		out[i] = classifier.Example{Features: s.Features, Intentional: s.IsIntentional}
	}
	return out
}

func counts(samples []Sample) (intentional, unintentional int) {
	for _, s := range samples {
		if s.IsIntentional {
			intentional++
		} else {
			unintentional++
		}
	}
	return intentional, unintentional
}
