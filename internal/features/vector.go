package features

// Normalization scales for the feature vector.
const (
	VelocityScale     = 500.0  // px/s
	AccelerationScale = 2000.0 // px/s²
	JitterScale       = 10.0   // px
	MagnitudeScale    = 100.0  // px
	FrequencyScale    = 10.0   // Hz
)

// VectorSize is the length of the canonical feature vector.
const VectorSize = 15

// ProbeSize is the length of the reduced separability probe vector.
const ProbeSize = 5

var featureNames = [VectorSize]string{
	"velocity_x",
	"velocity_y",
	"acceleration",
	"jitter",
	"is_smooth",
	"direction_up",
	"direction_down",
	"direction_left",
	"direction_right",
	"magnitude",
	"is_reversing",
	"frequency",
	"steadiness",
	"pattern_score",
	"continuity",
}

// FeatureNames returns the names of the Vector dimensions in order.
func FeatureNames() []string {
	names := make([]string, VectorSize)
	copy(names, featureNames[:])
	return names
}

// Vector returns the canonical normalized feature vector. The order is fixed
// and matches FeatureNames; trained models depend on it.
func (f MovementFeatures) Vector() []float64 {
	v := make([]float64, VectorSize)
	v[0] = clamp(f.VelocityX/VelocityScale, -1, 1)
	v[1] = clamp(f.VelocityY/VelocityScale, -1, 1)
	v[2] = clamp(f.Acceleration/AccelerationScale, 0, 1)
	v[3] = clamp(f.Jitter/JitterScale, 0, 1)
	v[4] = boolf(f.IsSmooth)
	switch f.Direction {
	case Up:
		v[5] = 1
	case Down:
		v[6] = 1
	case Left:
		v[7] = 1
	case Right:
		v[8] = 1
	}
	v[9] = clamp(f.Magnitude/MagnitudeScale, 0, 1)
	v[10] = boolf(f.IsReversing)
	v[11] = clamp(f.Frequency/FrequencyScale, 0, 1)
	v[12] = clamp(f.Steadiness, 0, 1)
	v[13] = clamp(f.PatternScore, 0, 1)
	v[14] = clamp(f.Continuity, 0, 1)
	return v
}

// ProbeVector returns the reduced subset used by the calibration
// separability probe: speed, jitter, frequency, steadiness and magnitude.
func (f MovementFeatures) ProbeVector() []float64 {
	return []float64{
		clamp(f.Speed()/VelocityScale, 0, 1),
		clamp(f.Jitter/JitterScale, 0, 1),
		clamp(f.Frequency/FrequencyScale, 0, 1),
		clamp(f.Steadiness, 0, 1),
		clamp(f.Magnitude/MagnitudeScale, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
