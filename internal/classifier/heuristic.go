package classifier

import "github.com/ayusman/mudra/internal/features"

// Indicator identifies one boolean cue evaluated by the heuristic.
type Indicator int

const (
	FastSpeed Indicator = iota
	LowJitter
	Accelerating
	GestureDuration
	NotReversing
	LowFrequency
	Steady
	Patterned
	Continuous
	LargeMovement

	NumIndicators
)

var indicatorNames = [NumIndicators]string{
	"fast_speed",
	"low_jitter",
	"accelerating",
	"gesture_duration",
	"not_reversing",
	"low_frequency",
	"steady",
	"patterned",
	"continuous",
	"large_movement",
}

func (i Indicator) String() string {
	if i < 0 || i >= NumIndicators {
		return "unknown"
	}
	return indicatorNames[i]
}

// Weights assigns a weight to each indicator.
type Weights [NumIndicators]float64

// DefaultWeights returns the default indicator weights. Low frequency carries
// the most weight since periodic motion is the clearest sign of tremor.
func DefaultWeights() Weights {
	return Weights{
		FastSpeed:       0.12,
		LowJitter:       0.10,
		Accelerating:    0.08,
		GestureDuration: 0.10,
		NotReversing:    0.06,
		LowFrequency:    0.20,
		Steady:          0.07,
		Patterned:       0.10,
		Continuous:      0.07,
		LargeMovement:   0.10,
	}
}

// HeuristicConfig holds the heuristic's thresholds.
type HeuristicConfig struct {
	Threshold       float64 // intentional if score exceeds this
	MinSpeed        float64 // px/s
	MaxJitter       float64 // px
	MinAcceleration float64 // px/s²
	MinDuration     float64 // seconds
	MaxDuration     float64 // seconds
	MaxFrequency    float64 // Hz
	MinSteadiness   float64
	MinPattern      float64
	MinContinuity   float64
	MinMagnitude    float64 // px

	// TremorVeto forces an unintentional verdict when the frequency
	// indicator fails, regardless of the weighted score.
	TremorVeto bool

	// MotionGate forces an unintentional verdict unless the movement is
	// fast or large. Smoothness cues alone describe resting sway as well
	// as a deliberate gesture.
	MotionGate bool

	Weights Weights
}

// DefaultHeuristicConfig returns a HeuristicConfig with sensible default values.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		Threshold:       DefaultHeuristicThreshold,
		MinSpeed:        25,
		MaxJitter:       3,
		MinAcceleration: 50,
		MinDuration:     0.2,
		MaxDuration:     1.5,
		MaxFrequency:    4,
		MinSteadiness:   0.6,
		MinPattern:      0.5,
		MinContinuity:   0.7,
		MinMagnitude:    15,
		TremorVeto:      true,
		MotionGate:      true,
		Weights:         DefaultWeights(),
	}
}

// Heuristic is a deterministic weighted-indicator classifier. It is always
// available and safe for concurrent use.
type Heuristic struct {
	config HeuristicConfig
	total  float64
}

// NewHeuristic creates a Heuristic. A zero Weights value uses DefaultWeights.
func NewHeuristic(config HeuristicConfig) *Heuristic {
	if config.Weights == (Weights{}) {
		config.Weights = DefaultWeights()
	}
	total := 0.0
	for _, w := range config.Weights {
		total += w
	}
	return &Heuristic{config: config, total: total}
}

// Indicators evaluates each indicator for f.
func (h *Heuristic) Indicators(f features.MovementFeatures) [NumIndicators]bool {
	c := h.config
	var ind [NumIndicators]bool
	ind[FastSpeed] = f.Speed() > c.MinSpeed
	ind[LowJitter] = f.Jitter < c.MaxJitter && f.IsSmooth
	ind[Accelerating] = f.Acceleration > c.MinAcceleration
	ind[GestureDuration] = f.Duration >= c.MinDuration && f.Duration <= c.MaxDuration
	ind[NotReversing] = !f.IsReversing
	ind[LowFrequency] = f.Frequency < c.MaxFrequency
	ind[Steady] = f.Steadiness > c.MinSteadiness
	ind[Patterned] = f.PatternScore > c.MinPattern
	ind[Continuous] = f.Continuity > c.MinContinuity
	ind[LargeMovement] = f.Magnitude > c.MinMagnitude
	return ind
}

// Score returns the weighted fraction of true indicators, in [0,1].
func (h *Heuristic) Score(f features.MovementFeatures) float64 {
	return h.score(h.Indicators(f))
}

func (h *Heuristic) score(ind [NumIndicators]bool) float64 {
	if h.total <= 0 {
		return 0
	}
	sum := 0.0
	for i, on := range ind {
		if on {
			sum += h.config.Weights[i]
		}
	}
	return sum / h.total
}

// Classify scores f and applies the decision threshold, then the tremor veto
// and the motion gate.
func (h *Heuristic) Classify(f features.MovementFeatures) Verdict {
	ind := h.Indicators(f)
	score := h.score(ind)
	v := newVerdict(score, h.config.Threshold, SourceHeuristic)
	if !v.Intentional {
		return v
	}

	tremor := h.config.TremorVeto && f.Frequency >= h.config.MaxFrequency
	still := h.config.MotionGate && !ind[FastSpeed] && !ind[LargeMovement]
	if tremor || still {
		v.Intentional = false
		v.Confidence = 1 - score
	}
	return v
}
