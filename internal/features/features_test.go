package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/pose"
)

func TestNewExtractor_Defaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), NewExtractor(Config{}).Config())

	cfg := DefaultConfig()
	cfg.SmoothJitterMax = 7
	cfg.DirectionDeadZone = 1
	got := NewExtractor(cfg).Config()
	assert.Equal(t, 7.0, got.SmoothJitterMax)
	assert.Equal(t, 1.0, got.DirectionDeadZone)
}

func TestExtract_LinearMotion(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 0)

	f, ok := ex.Extract(window, pose.LeftWrist)
	require.True(t, ok)

	elapsed := float64(14*pose.FrameIntervalMS) / 1000
	assert.InDelta(t, 30/elapsed, f.VelocityX, 1e-6)
	assert.InDelta(t, 0, f.VelocityY, 1e-9)
	assert.InDelta(t, 30, f.Magnitude, 1e-9)
	assert.Equal(t, Right, f.Direction)
	assert.InDelta(t, 0, f.Jitter, 1e-9)
	assert.True(t, f.IsSmooth)
	assert.InDelta(t, 0, f.Acceleration, 1e-6)
	assert.Zero(t, f.Frequency)
	assert.InDelta(t, 1, f.Steadiness, 1e-9)
	assert.Equal(t, 0.8, f.PatternScore)
	assert.Equal(t, 1.0, f.Continuity)
	assert.Equal(t, window[14].Timestamp, f.Timestamp)
}

func TestExtract_Directions(t *testing.T) {
	ex := NewExtractor(DefaultConfig())

	tests := []struct {
		name           string
		x0, y0, x1, y1 float64
		want           Direction
	}{
		{"right", 0, 0, 40, 10, Right},
		{"left", 40, 0, 0, 5, Left},
		{"down", 0, 0, 10, 40, Down},
		{"up", 0, 40, 5, 0, Up},
		{"negligible", 10, 10, 12, 11, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := pose.LinearMotion(pose.Nose, 15, tt.x0, tt.y0, tt.x1, tt.y1, 0)
			f, ok := ex.Extract(window, pose.Nose)
			require.True(t, ok)
			assert.Equal(t, tt.want, f.Direction)
		})
	}
}

func TestExtract_Tremor(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	window := pose.TremorMotion(pose.RightWrist, 15, 100, 100, 3, 0, 0)

	f, ok := ex.Extract(window, pose.RightWrist)
	require.True(t, ok)

	assert.Greater(t, f.Frequency, 4.0)
	assert.Equal(t, 0.2, f.PatternScore)
	assert.Equal(t, None, f.Direction)
	assert.Zero(t, f.Jitter, "jitter is zero below the significant movement threshold")
}

func TestExtract_Jitter(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 60, 0, 0)
	// Push every intermediate sample 4px off the line.
	for i := 1; i < len(window)-1; i++ {
		window[i].Landmarks[0].Y += 4
	}

	f, ok := ex.Extract(window, pose.LeftWrist)
	require.True(t, ok)
	assert.InDelta(t, 4, f.Jitter, 1e-9)
	assert.False(t, f.IsSmooth)
}

func TestExtract_Unavailable(t *testing.T) {
	ex := NewExtractor(DefaultConfig())

	t.Run("short history", func(t *testing.T) {
		window := pose.LinearMotion(pose.LeftWrist, 9, 0, 0, 30, 0, 0)
		_, ok := ex.Extract(window, pose.LeftWrist)
		assert.False(t, ok)
	})

	t.Run("missing landmark", func(t *testing.T) {
		window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 0)
		_, ok := ex.Extract(window, pose.RightWrist)
		assert.False(t, ok)
	})

	t.Run("low confidence endpoint", func(t *testing.T) {
		window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 0)
		window[14].Landmarks[0].Confidence = 0.1
		_, ok := ex.Extract(window, pose.LeftWrist)
		assert.False(t, ok)
	})

	t.Run("missing first frame", func(t *testing.T) {
		window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 0)
		window[0].Landmarks = nil
		_, ok := ex.Extract(window, pose.LeftWrist)
		assert.False(t, ok)
	})

	t.Run("too few frames carry landmark", func(t *testing.T) {
		window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 0)
		for i := 2; i < 8; i++ {
			window[i].Landmarks = nil
		}
		_, ok := ex.Extract(window, pose.LeftWrist)
		assert.False(t, ok)
	})

	t.Run("no elapsed time", func(t *testing.T) {
		window := pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 0)
		for i := range window {
			window[i].Timestamp = 500
		}
		_, ok := ex.Extract(window, pose.LeftWrist)
		assert.False(t, ok)
	})
}

func TestExtract_UsesMostRecentWindow(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	window := pose.StillFrames(pose.LeftWrist, 15, 0, 0, 0)
	window = append(window, pose.LinearMotion(pose.LeftWrist, 15, 0, 0, 30, 0, 15*pose.FrameIntervalMS)...)

	f, ok := ex.Extract(window, pose.LeftWrist)
	require.True(t, ok)
	assert.InDelta(t, 30, f.Magnitude, 1e-9)
}

func TestExtract_StillLandmark(t *testing.T) {
	ex := NewExtractor(DefaultConfig())
	f, ok := ex.Extract(pose.StillFrames(pose.Nose, 15, 50, 50, 0), pose.Nose)
	require.True(t, ok)

	assert.Zero(t, f.Magnitude)
	assert.Equal(t, None, f.Direction)
	assert.Zero(t, f.Continuity)
	assert.Equal(t, 0.2, f.PatternScore)
	assert.Equal(t, 1.0, f.Steadiness)
}

func TestTracker_StartAndEnd(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	f := MovementFeatures{Magnitude: 20, Timestamp: 1000}
	state := tr.Observe(pose.LeftWrist, pose.Landmark{X: 20}, &f)
	assert.Equal(t, Moving, state)
	assert.Zero(t, f.Duration)

	f = MovementFeatures{Magnitude: 15, Timestamp: 1500}
	state = tr.Observe(pose.LeftWrist, pose.Landmark{X: 30}, &f)
	assert.Equal(t, Moving, state)
	assert.InDelta(t, 0.5, f.Duration, 1e-9)
	assert.False(t, f.IsReversing)

	f = MovementFeatures{Magnitude: 2, Timestamp: 1800}
	state = tr.Observe(pose.LeftWrist, pose.Landmark{X: 18}, &f)
	assert.Equal(t, Idle, state)
	assert.InDelta(t, 0.8, f.Duration, 1e-9)
	assert.True(t, f.IsReversing, "landmark returned near its start")

	f = MovementFeatures{Magnitude: 1, Timestamp: 1900}
	tr.Observe(pose.LeftWrist, pose.Landmark{X: 18}, &f)
	assert.Zero(t, f.Duration, "duration resets once idle")
}

func TestTracker_NotReversing(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	f := MovementFeatures{Magnitude: 20, Timestamp: 0}
	tr.Observe(pose.RightWrist, pose.Landmark{X: 0}, &f)

	f = MovementFeatures{Magnitude: 1, Timestamp: 600}
	state := tr.Observe(pose.RightWrist, pose.Landmark{X: 60}, &f)
	assert.Equal(t, Idle, state)
	assert.False(t, f.IsReversing)
}

func TestTracker_PeekDoesNotTransition(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	f := MovementFeatures{Magnitude: 20, Timestamp: 0}
	tr.Peek(pose.Nose, pose.Landmark{}, &f)
	assert.Equal(t, Idle, tr.State(pose.Nose))

	tr.Observe(pose.Nose, pose.Landmark{}, &f)
	require.Equal(t, Moving, tr.State(pose.Nose))

	f = MovementFeatures{Magnitude: 1, Timestamp: 400}
	tr.Peek(pose.Nose, pose.Landmark{X: 1}, &f)
	assert.InDelta(t, 0.4, f.Duration, 1e-9)
	assert.True(t, f.IsReversing)
	assert.Equal(t, Moving, tr.State(pose.Nose))

	tr.Reset()
	assert.Equal(t, Idle, tr.State(pose.Nose))
}

func TestVector(t *testing.T) {
	f := MovementFeatures{
		VelocityX:    1000,
		VelocityY:    -250,
		Acceleration: 100,
		Jitter:       1,
		Direction:    Right,
		IsSmooth:     true,
		Magnitude:    30,
		Frequency:    2,
		Steadiness:   0.9,
		PatternScore: 0.8,
		Continuity:   1,
	}

	v := f.Vector()
	require.Len(t, v, VectorSize)
	require.Len(t, FeatureNames(), VectorSize)

	assert.Equal(t, 1.0, v[0], "velocity is clamped")
	assert.Equal(t, -0.5, v[1])
	assert.Equal(t, 1.0, v[4])
	assert.Equal(t, []float64{0, 0, 0, 1}, v[5:9])
	assert.InDelta(t, 0.3, v[9], 1e-9)
	assert.Equal(t, 0.0, v[10])

	for i, x := range v {
		assert.GreaterOrEqual(t, x, -1.0, FeatureNames()[i])
		assert.LessOrEqual(t, x, 1.0, FeatureNames()[i])
	}

	p := f.ProbeVector()
	require.Len(t, p, ProbeSize)
	assert.Equal(t, 1.0, p[0])
}
