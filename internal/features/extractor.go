package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/mudra/internal/pose"
)

// Extractor computes MovementFeatures from history windows. It holds no
// state and is safe for concurrent use.
type Extractor struct {
	config Config
}

// NewExtractor creates an Extractor. Zero or negative fields of config fall
// back to DefaultConfig.
func NewExtractor(config Config) *Extractor {
	def := DefaultConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	if config.MinFrames <= 0 {
		config.MinFrames = def.MinFrames
	}
	if config.MinFrames < 2 {
		config.MinFrames = 2
	}
	if config.ConfidenceFloor <= 0 {
		config.ConfidenceFloor = def.ConfidenceFloor
	}
	if config.MinSignificantMovement <= 0 {
		config.MinSignificantMovement = def.MinSignificantMovement
	}
	if config.PauseThreshold <= 0 {
		config.PauseThreshold = def.PauseThreshold
	}
	if config.SmoothJitterMax <= 0 {
		config.SmoothJitterMax = def.SmoothJitterMax
	}
	if config.DirectionDeadZone <= 0 {
		config.DirectionDeadZone = def.DirectionDeadZone
	}
	if config.StartThreshold <= 0 {
		config.StartThreshold = def.StartThreshold
	}
	if config.EndThreshold <= 0 {
		config.EndThreshold = def.EndThreshold
	}
	return &Extractor{config: config}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.config
}

type sample struct {
	x, y float64
	t    float64 // seconds since window start
}

// Extract computes features for landmark name over the last WindowSize frames
// of window. It reports false when the landmark is missing from either
// endpoint frame, when fewer than MinFrames frames carry it, or when the
// window spans no time. Duration and IsReversing are left zero; see Tracker.
func (e *Extractor) Extract(window []pose.Frame, name pose.LandmarkName) (MovementFeatures, bool) {
	if len(window) > e.config.WindowSize {
		window = window[len(window)-e.config.WindowSize:]
	}
	if len(window) < e.config.MinFrames {
		return MovementFeatures{}, false
	}

	first, ok := e.resolve(window[0], name)
	if !ok {
		return MovementFeatures{}, false
	}
	if _, ok := e.resolve(window[len(window)-1], name); !ok {
		return MovementFeatures{}, false
	}

	t0 := window[0].Timestamp
	pts := make([]sample, 0, len(window))
	for i := range window {
		lm, ok := e.resolve(window[i], name)
		if !ok {
			continue
		}
		pts = append(pts, sample{x: lm.X, y: lm.Y, t: float64(window[i].Timestamp-t0) / 1000})
	}
	if len(pts) < e.config.MinFrames {
		return MovementFeatures{}, false
	}

	last := pts[len(pts)-1]
	elapsed := last.t
	if elapsed <= 0 {
		return MovementFeatures{}, false
	}

	dx := last.x - first.X
	dy := last.y - first.Y
	magnitude := hypot(dx, dy)

	f := MovementFeatures{
		VelocityX:    dx / elapsed,
		VelocityY:    dy / elapsed,
		Acceleration: acceleration(pts, elapsed),
		Magnitude:    magnitude,
		Direction:    direction(dx, dy, e.config.DirectionDeadZone),
		Timestamp:    window[len(window)-1].Timestamp,
	}

	if magnitude >= e.config.MinSignificantMovement {
		f.Jitter = jitter(pts)
	}
	f.IsSmooth = f.Jitter <= e.config.SmoothJitterMax

	stepX, stepY, speeds := steps(pts)
	f.Frequency = float64(signChanges(stepX)+signChanges(stepY)) / (2 * elapsed)
	f.Steadiness = math.Max(0, 1-stat.PopVariance(speeds, nil)/100)
	f.PatternScore = patternScore(stepX, stepY)
	f.Continuity = continuity(speeds, e.config.PauseThreshold)

	return f, true
}

// Position returns the latest resolved position of name in window.
func (e *Extractor) Position(window []pose.Frame, name pose.LandmarkName) (pose.Landmark, bool) {
	if len(window) == 0 {
		return pose.Landmark{}, false
	}
	return e.resolve(window[len(window)-1], name)
}

func (e *Extractor) resolve(f pose.Frame, name pose.LandmarkName) (pose.Landmark, bool) {
	lm, ok := f.Find(name)
	if !ok || lm.Confidence < e.config.ConfidenceFloor {
		return pose.Landmark{}, false
	}
	return lm, true
}

// acceleration splits the samples at the midpoint and differences the two
// half-window velocities over the total elapsed time.
func acceleration(pts []sample, elapsed float64) float64 {
	mid := len(pts) / 2
	a, m, b := pts[0], pts[mid], pts[len(pts)-1]

	t1 := m.t - a.t
	t2 := b.t - m.t
	if t1 <= 0 || t2 <= 0 {
		return 0
	}

	v1x, v1y := (m.x-a.x)/t1, (m.y-a.y)/t1
	v2x, v2y := (b.x-m.x)/t2, (b.y-m.y)/t2
	return hypot(v2x-v1x, v2y-v1y) / elapsed
}

func direction(dx, dy, deadZone float64) Direction {
	if hypot(dx, dy) < deadZone {
		return None
	}
	if math.Abs(dx) >= math.Abs(dy) {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Down
	}
	return Up
}

// jitter is the mean distance of intermediate samples from the point the
// endpoint line predicts at the same time fraction.
func jitter(pts []sample) float64 {
	if len(pts) < 3 {
		return 0
	}
	a, b := pts[0], pts[len(pts)-1]
	span := b.t - a.t

	devs := make([]float64, 0, len(pts)-2)
	for _, p := range pts[1 : len(pts)-1] {
		frac := (p.t - a.t) / span
		ex := a.x + frac*(b.x-a.x)
		ey := a.y + frac*(b.y-a.y)
		devs = append(devs, hypot(p.x-ex, p.y-ey))
	}
	return stat.Mean(devs, nil)
}

func steps(pts []sample) (dx, dy, speeds []float64) {
	n := len(pts) - 1
	dx = make([]float64, n)
	dy = make([]float64, n)
	speeds = make([]float64, n)
	for i := 0; i < n; i++ {
		dx[i] = pts[i+1].x - pts[i].x
		dy[i] = pts[i+1].y - pts[i].y
		speeds[i] = hypot(dx[i], dy[i])
	}
	return dx, dy, speeds
}

// signChanges counts reversals between consecutive non-zero steps.
func signChanges(steps []float64) int {
	changes := 0
	prev := 0.0
	for _, s := range steps {
		if s == 0 {
			continue
		}
		if prev != 0 && (s > 0) != (prev > 0) {
			changes++
		}
		prev = s
	}
	return changes
}

func patternScore(dx, dy []float64) float64 {
	if consistentSign(dx) || consistentSign(dy) {
		return 0.8
	}
	return 0.2
}

func consistentSign(steps []float64) bool {
	if len(steps) == 0 {
		return false
	}
	pos, neg := true, true
	for _, s := range steps {
		pos = pos && s > 0
		neg = neg && s < 0
	}
	return pos || neg
}

func continuity(speeds []float64, pause float64) float64 {
	if len(speeds) == 0 {
		return 0
	}
	moving := 0
	for _, s := range speeds {
		if s > pause {
			moving++
		}
	}
	return float64(moving) / float64(len(speeds))
}

func hypot(x, y float64) float64 {
	return math.Hypot(x, y)
}
