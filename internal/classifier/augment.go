package classifier

import (
	"math/rand/v2"

	"github.com/ayusman/mudra/internal/features"
)

// Augmentation defaults.
const (
	DefaultAugmentJitter    = 0.10 // ±10% multiplicative noise
	DefaultMaxClassRatio    = 1.25 // majority/minority after balancing
	DefaultMaxAugmentFactor = 3    // synthetic samples per minority original
)

// Augmenter balances a training set before training. Implementations must
// not modify the input slice.
type Augmenter interface {
	Balance(examples []Example, rng *rand.Rand) []Example
}

// NoAugmenter returns the training set unchanged.
type NoAugmenter struct{}

// Balance implements Augmenter.
func (NoAugmenter) Balance(examples []Example, _ *rand.Rand) []Example {
	return append([]Example(nil), examples...)
}

// JitterAugmenter duplicates minority-class examples with small multiplicative
// noise on their numeric features until the class ratio is within MaxRatio or
// the synthetic budget is spent.
type JitterAugmenter struct {
	Jitter    float64
	MaxRatio  float64
	MaxFactor int
}

// NewJitterAugmenter creates a JitterAugmenter with the default bounds.
func NewJitterAugmenter() JitterAugmenter {
	return JitterAugmenter{
		Jitter:    DefaultAugmentJitter,
		MaxRatio:  DefaultMaxClassRatio,
		MaxFactor: DefaultMaxAugmentFactor,
	}
}

// Balance implements Augmenter.
func (a JitterAugmenter) Balance(examples []Example, rng *rand.Rand) []Example {
	out := append([]Example(nil), examples...)

	pos, neg := classCounts(examples)
	if pos == 0 || neg == 0 {
		return out
	}

	minorityLabel := pos < neg
	var minority []Example
	for _, e := range examples {
		if e.Intentional == minorityLabel {
			minority = append(minority, e)
		}
	}

	major, minor := max(pos, neg), min(pos, neg)
	budget := a.MaxFactor * len(minority)
	for added := 0; added < budget && float64(major) > a.MaxRatio*float64(minor); added++ {
		src := minority[rng.IntN(len(minority))]
		out = append(out, Example{
			Features:    a.perturb(src.Features, rng),
			Intentional: src.Intentional,
		})
		minor++
	}
	return out
}

func (a JitterAugmenter) perturb(f features.MovementFeatures, rng *rand.Rand) features.MovementFeatures {
	jit := func(v float64) float64 {
		return v * (1 + (rng.Float64()*2-1)*a.Jitter)
	}
	unit := func(v float64) float64 {
		return min(1, max(0, jit(v)))
	}

	f.VelocityX = jit(f.VelocityX)
	f.VelocityY = jit(f.VelocityY)
	f.Acceleration = jit(f.Acceleration)
	f.Jitter = jit(f.Jitter)
	f.Magnitude = jit(f.Magnitude)
	f.Duration = jit(f.Duration)
	f.Frequency = jit(f.Frequency)
	f.Steadiness = unit(f.Steadiness)
	f.PatternScore = unit(f.PatternScore)
	f.Continuity = unit(f.Continuity)
	return f
}
