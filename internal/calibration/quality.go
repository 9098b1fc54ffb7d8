package calibration

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/features"
)

// MaxSubScore caps each of the four quality sub-scores.
const MaxSubScore = 25.0

// Quality bands.
const (
	RecalibrateBelow = 40.0
	ReadyAt          = 70.0
)

// Status labels for a quality score.
const (
	StatusRecalibrate = "recalibrate"
	StatusFair        = "fair"
	StatusReady       = "ready"
)

// Status maps a quality score to its advisory band.
func Status(quality float64) string {
	switch {
	case quality < RecalibrateBelow:
		return StatusRecalibrate
	case quality >= ReadyAt:
		return StatusReady
	default:
		return StatusFair
	}
}

// Breakdown is a calibration quality score and its four components.
type Breakdown struct {
	Count        float64 `json:"count"`
	Balance      float64 `json:"balance"`
	Diversity    float64 `json:"diversity"`
	Separability float64 `json:"separability"`
	Total        float64 `json:"total"`
}

func (b Breakdown) Status() string {
	return Status(b.Total)
}

// score computes the quality breakdown of samples.
func score(cfg Config, samples []Sample) Breakdown {
	if len(samples) == 0 {
		return Breakdown{}
	}
	b := Breakdown{
		Count:        countScore(cfg, len(samples)),
		Balance:      balanceScore(cfg, samples),
		Diversity:    diversityScore(cfg, samples),
		Separability: separabilityScore(cfg, samples),
	}
	b.Total = b.Count + b.Balance + b.Diversity + b.Separability
	return b
}

func countScore(cfg Config, n int) float64 {
	return MaxSubScore * math.Min(1, float64(n)/float64(cfg.TargetSamples))
}

func balanceScore(cfg Config, samples []Sample) float64 {
	return MaxSubScore * math.Min(1, balanceRatio(samples)/cfg.BalanceCeiling)
}

// balanceRatio is min(class)/max(class), 0 when a class is missing.
func balanceRatio(samples []Sample) float64 {
	pos, neg := counts(samples)
	if pos == 0 || neg == 0 {
		return 0
	}
	return float64(min(pos, neg)) / float64(max(pos, neg))
}

type movementKind struct {
	intentional bool
	direction   features.Direction
	bucket      int
}

// diversityScore counts distinct (direction, magnitude bucket) combinations
// within each class.
func diversityScore(cfg Config, samples []Sample) float64 {
	kinds := make(map[movementKind]struct{})
	for _, s := range samples {
		bucket := int(s.Features.Magnitude / cfg.MagnitudeBucket)
		bucket = min(max(bucket, 0), cfg.MaxMagnitudeBucket)
		kinds[movementKind{s.IsIntentional, s.Features.Direction, bucket}] = struct{}{}
	}
	return MaxSubScore * math.Min(1, float64(len(kinds))/float64(cfg.DiversityTarget))
}

// separabilityScore trains a logistic-regression probe on a seeded split of
// the reduced feature vectors and maps its held-out accuracy from [0.5,1]
// to [0,25].
func separabilityScore(cfg Config, samples []Sample) float64 {
	pos, neg := counts(samples)
	if len(samples) < cfg.ProbeMinSamples || pos == 0 || neg == 0 {
		return cfg.ProbeDefault
	}

	rng := rand.New(rand.NewPCG(cfg.ProbeSeed, cfg.ProbeSeed+1))
	order := rng.Perm(len(samples))
	cut := int(math.Round(float64(len(samples)) * cfg.ProbeTrainFraction))
	if cut <= 0 || cut >= len(samples) {
		return cfg.ProbeDefault
	}

	train := make([]Sample, 0, cut)
	for _, i := range order[:cut] {
		train = append(train, samples[i])
	}
	p := fitProbe(train)

	correct := 0
	for _, i := range order[cut:] {
		if p.predict(samples[i].Features.ProbeVector()) == samples[i].IsIntentional {
			correct++
		}
	}
	acc := float64(correct) / float64(len(samples)-cut)

	return min(MaxSubScore, max(0, (acc-0.5)/0.5*MaxSubScore))
}

const (
	probeIterations = 300
	probeRate       = 0.5
)

type probe struct {
	w []float64
	b float64
}

// fitProbe runs full-batch gradient descent on the logistic loss.
func fitProbe(samples []Sample) probe {
	xs := make([][]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Features.ProbeVector()
	}

	p := probe{w: make([]float64, features.ProbeSize)}
	grad := make([]float64, features.ProbeSize)
	n := float64(len(samples))

	for it := 0; it < probeIterations; it++ {
		clear(grad)
		gb := 0.0
		for i, x := range xs {
			y := 0.0
			if samples[i].IsIntentional {
				y = 1
			}
			d := p.prob(x) - y
			floats.AddScaled(grad, d, x)
			gb += d
		}
		floats.AddScaled(p.w, -probeRate/n, grad)
		p.b -= probeRate * gb / n
	}
	return p
}

func (p probe) prob(x []float64) float64 {
	return 1 / (1 + math.Exp(-(floats.Dot(p.w, x) + p.b)))
}

func (p probe) predict(x []float64) bool {
	return p.prob(x) > 0.5
}
