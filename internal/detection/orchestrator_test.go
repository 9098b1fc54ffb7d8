package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/remote"
)

type fixedModel struct {
	verdict classifier.Verdict
	trained bool
}

func (m fixedModel) Classify(features.MovementFeatures) (classifier.Verdict, bool) {
	return m.verdict, m.trained
}

type backendFunc func(ctx context.Context, req remote.Request) (remote.Response, error)

func (f backendFunc) Classify(ctx context.Context, req remote.Request) (remote.Response, error) {
	return f(ctx, req)
}

type countingObserver struct {
	frames, emitted, suppressed int
}

func (c *countingObserver) FrameProcessed(time.Duration) { c.frames++ }
func (c *countingObserver) ResultEmitted(MovementResult) { c.emitted++ }
func (c *countingObserver) Suppressed(pose.LandmarkName) { c.suppressed++ }

func wristOnly() Config {
	cfg := DefaultConfig()
	cfg.Landmarks = []pose.LandmarkName{pose.LeftWrist}
	return cfg
}

func run(o *Orchestrator, frames []pose.Frame) [][]MovementResult {
	out := make([][]MovementResult, len(frames))
	for i, f := range frames {
		out[i] = o.ProcessFrame(context.Background(), f)
	}
	return out
}

func TestProcessFrame_MinHistory(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{})
	frames := pose.LinearMotion(pose.LeftWrist, 10, 0, 0, 100, 0, 0)

	results := run(o, frames)
	for i := 0; i < 9; i++ {
		assert.Empty(t, results[i], "frame %d", i)
	}
	assert.NotEmpty(t, results[9], "history is long enough at the 10th frame")
}

func TestProcessFrame_DeliberateMovement(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{})
	results := run(o, pose.LinearMotion(pose.LeftWrist, 10, 0, 0, 90, 0, 0))

	require.Len(t, results[9], 1)
	r := results[9][0]
	assert.Equal(t, pose.LeftWrist, r.Landmark)
	assert.True(t, r.IsIntentional)
	assert.Equal(t, features.Right, r.Direction)
	assert.Equal(t, classifier.SourceHeuristic, r.Source)
	assert.Greater(t, r.Velocity, 100.0)
	assert.Equal(t, int64(9*pose.FrameIntervalMS), r.Timestamp)
}

func TestProcessFrame_Cooldown(t *testing.T) {
	obs := &countingObserver{}
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{Observer: obs})
	frames := pose.LinearMotion(pose.LeftWrist, 40, 0, 0, 390, 0, 0)

	var intentional []int64
	suppressed := 0
	for _, batch := range run(o, frames) {
		for _, r := range batch {
			if r.IsIntentional {
				intentional = append(intentional, r.Timestamp)
			}
			if r.Suppressed {
				suppressed++
				assert.False(t, r.IsIntentional)
				assert.Greater(t, r.Velocity, 0.0, "velocity is still reported")
				last := intentional[len(intentional)-1]
				assert.Less(t, r.Timestamp-last, int64(200))
			}
		}
	}

	require.GreaterOrEqual(t, len(intentional), 2)
	for i := 1; i < len(intentional); i++ {
		assert.GreaterOrEqual(t, intentional[i]-intentional[i-1], int64(200))
	}
	assert.Positive(t, suppressed)
	assert.Equal(t, suppressed, obs.suppressed)
	assert.Equal(t, 40, obs.frames)
	assert.Equal(t, 31, obs.emitted, "every frame from the 10th on is emitted")
}

func TestProcessFrame_CooldownBoundary(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{Trainable: true}, Services{
		Trainable: fixedModel{trained: true, verdict: classifier.Verdict{Intentional: true, Confidence: 0.9, Source: classifier.SourceTrainable}},
	})

	// Ten frames to fill the history, then probe at fixed offsets.
	frames := pose.LinearMotion(pose.LeftWrist, 10, 0, 0, 90, 0, 0)
	results := run(o, frames)
	require.True(t, results[9][0].IsIntentional)
	t0 := frames[9].Timestamp

	next := func(ts int64, x float64) MovementResult {
		f := pose.Frame{Timestamp: ts, Landmarks: []pose.Landmark{{Name: pose.LeftWrist, X: x, Confidence: 0.9}}}
		out := o.ProcessFrame(context.Background(), f)
		require.Len(t, out, 1)
		return out[0]
	}

	assert.False(t, next(t0+199, 110).IsIntentional, "inside the cooldown")
	assert.True(t, next(t0+200, 130).IsIntentional, "cooldown elapsed")
	assert.False(t, next(t0+250, 150).IsIntentional)
}

func TestProcessFrame_Tremor(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{})
	frames := pose.TremorMotion(pose.LeftWrist, 30, 200, 200, 20, 3, 0)

	for _, batch := range run(o, frames) {
		for _, r := range batch {
			assert.False(t, r.IsIntentional, "tremor at %d", r.Timestamp)
		}
	}
}

func TestProcessFrame_SlowSway(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{})
	frames := pose.LinearMotion(pose.LeftWrist, 30, 100, 100, 120, 100, 0)

	for _, batch := range run(o, frames) {
		for _, r := range batch {
			assert.Less(t, r.Velocity, 25.0)
			assert.False(t, r.IsIntentional, "sway at %d (%.1f px/s)", r.Timestamp, r.Velocity)
		}
	}
}

func TestProcessFrame_StillIsNotEmitted(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{})
	for _, batch := range run(o, pose.StillFrames(pose.LeftWrist, 20, 50, 50, 0)) {
		assert.Empty(t, batch)
	}
}

func TestProcessFrame_LowConfidenceSkipped(t *testing.T) {
	o := NewOrchestrator(wristOnly(), Capabilities{}, Services{})
	frames := pose.LinearMotion(pose.LeftWrist, 12, 0, 0, 120, 0, 0)
	frames[11].Landmarks[0].Confidence = 0.2

	results := run(o, frames)
	assert.NotEmpty(t, results[10])
	assert.Empty(t, results[11])
}

func TestProcessFrame_TrainablePriority(t *testing.T) {
	frames := pose.LinearMotion(pose.LeftWrist, 10, 0, 0, 90, 0, 0)
	model := fixedModel{trained: true, verdict: classifier.Verdict{Intentional: false, Confidence: 0.95, Source: classifier.SourceTrainable}}

	t.Run("trained model wins over heuristic", func(t *testing.T) {
		o := NewOrchestrator(wristOnly(), Capabilities{Trainable: true}, Services{Trainable: model})
		r := run(o, frames)[9]
		require.Len(t, r, 1)
		assert.Equal(t, classifier.SourceTrainable, r[0].Source)
		assert.False(t, r[0].IsIntentional)
	})

	t.Run("disabled capability uses heuristic", func(t *testing.T) {
		o := NewOrchestrator(wristOnly(), Capabilities{Trainable: false}, Services{Trainable: model})
		r := run(o, frames)[9]
		require.Len(t, r, 1)
		assert.Equal(t, classifier.SourceHeuristic, r[0].Source)
	})

	t.Run("untrained model falls back", func(t *testing.T) {
		o := NewOrchestrator(wristOnly(), Capabilities{Trainable: true}, Services{Trainable: fixedModel{}})
		r := run(o, frames)[9]
		require.Len(t, r, 1)
		assert.Equal(t, classifier.SourceHeuristic, r[0].Source)
	})
}

func TestProcessFrame_RemoteBlend(t *testing.T) {
	frames := pose.LinearMotion(pose.LeftWrist, 10, 0, 0, 90, 0, 0)
	local := fixedModel{trained: true, verdict: classifier.Verdict{Intentional: false, Confidence: 0.7, Source: classifier.SourceTrainable}}

	tests := []struct {
		name       string
		backend    backendFunc
		wantSource string
		wantIntent bool
	}{
		{
			name: "more confident remote wins",
			backend: func(context.Context, remote.Request) (remote.Response, error) {
				return remote.Response{IsIntentional: true, Confidence: 0.9}, nil
			},
			wantSource: classifier.SourceRemote,
			wantIntent: true,
		},
		{
			name: "less confident remote ignored",
			backend: func(context.Context, remote.Request) (remote.Response, error) {
				return remote.Response{IsIntentional: true, Confidence: 0.6}, nil
			},
			wantSource: classifier.SourceTrainable,
		},
		{
			name: "failing remote ignored",
			backend: func(context.Context, remote.Request) (remote.Response, error) {
				return remote.Response{}, errors.New("unreachable")
			},
			wantSource: classifier.SourceTrainable,
		},
		{
			name: "slow remote times out",
			backend: func(ctx context.Context, _ remote.Request) (remote.Response, error) {
				<-ctx.Done()
				return remote.Response{IsIntentional: true, Confidence: 1}, nil
			},
			wantSource: classifier.SourceTrainable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := remote.NewDelegate(tt.backend, remote.WithTimeout(50*time.Millisecond))
			defer d.Close()

			o := NewOrchestrator(wristOnly(), Capabilities{Remote: true, Trainable: true}, Services{Trainable: local, Remote: d})
			r := run(o, frames)[9]
			require.Len(t, r, 1)
			assert.Equal(t, tt.wantSource, r[0].Source)
			assert.Equal(t, tt.wantIntent, r[0].IsIntentional)
		})
	}
}

func TestNewOrchestrator_ResolvesCapabilities(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), Capabilities{Remote: true, Trainable: true}, Services{})
	assert.Equal(t, Capabilities{}, o.Capabilities(), "missing services disable their paths")
}

func TestExtractAll(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), Capabilities{}, Services{})
	assert.Nil(t, o.ExtractAll(), "no history yet")

	frames := pose.LinearMotion(pose.RightWrist, 15, 0, 0, 60, 0, 0)
	run(o, frames)
	before := o.State().Tracker.State(pose.RightWrist)

	all := o.ExtractAll()
	require.Len(t, all, 1)
	assert.Equal(t, pose.RightWrist, all[0].Landmark)
	assert.InDelta(t, 60, all[0].Features.Magnitude, 1e-9)
	assert.Greater(t, all[0].Features.Duration, 0.0)
	assert.Equal(t, before, o.State().Tracker.State(pose.RightWrist))

	latest, ok := o.State().Latest(pose.RightWrist)
	require.True(t, ok)
	assert.Equal(t, frames[14].Timestamp, latest.Timestamp)

	o.Reset()
	assert.Nil(t, o.ExtractAll())
	_, ok = o.State().LastIntentional(pose.RightWrist)
	assert.False(t, ok)
}
