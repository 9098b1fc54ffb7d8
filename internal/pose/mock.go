package pose

import (
	"context"
	"time"
)

// MockSource replays a fixed sequence of frames. It allows tests and demos to
// drive the pipeline without a pose estimator.
type MockSource struct {
	frames   []Frame
	interval time.Duration
	err      error
}

// NewMockSource creates a MockSource that emits frames back to back.
func NewMockSource(frames []Frame) *MockSource {
	return &MockSource{frames: frames}
}

// SetInterval paces emission with a real-time delay between frames.
func (m *MockSource) SetInterval(d time.Duration) {
	m.interval = d
}

// SetError sets an error reported after all frames have been delivered.
func (m *MockSource) SetError(err error) {
	m.err = err
}

// Frames implements Source.
func (m *MockSource) Frames(ctx context.Context) (<-chan Frame, <-chan error) {
	out := make(chan Frame)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		for _, f := range m.frames {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			if m.interval > 0 {
				select {
				case <-time.After(m.interval):
				case <-ctx.Done():
					return
				}
			}
		}
		if m.err != nil {
			errs <- m.err
		}
	}()

	return out, errs
}

// FrameIntervalMS is the spacing of generated frames (30fps).
const FrameIntervalMS = 1000 / 30

// LinearMotion generates n frames where landmark name moves in a straight line
// from (x0,y0) to (x1,y1) at 30fps, starting at timestamp start.
func LinearMotion(name LandmarkName, n int, x0, y0, x1, y1 float64, start int64) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		frames[i] = Frame{
			Landmarks: []Landmark{{
				Name:       name,
				X:          x0 + (x1-x0)*t,
				Y:          y0 + (y1-y0)*t,
				Confidence: 0.95,
			}},
			Timestamp: start + int64(i)*FrameIntervalMS,
		}
	}
	return frames
}

// TremorMotion generates n frames where landmark name oscillates around
// (x,y), alternating its displacement sign every frame while drifting by
// drift pixels per frame along x.
func TremorMotion(name LandmarkName, n int, x, y, amplitude, drift float64, start int64) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		offset := amplitude
		if i%2 == 1 {
			offset = -amplitude
		}
		frames[i] = Frame{
			Landmarks: []Landmark{{
				Name:       name,
				X:          x + offset + drift*float64(i),
				Y:          y - offset,
				Confidence: 0.95,
			}},
			Timestamp: start + int64(i)*FrameIntervalMS,
		}
	}
	return frames
}

// StillFrames generates n frames with the landmark resting at (x,y).
func StillFrames(name LandmarkName, n int, x, y float64, start int64) []Frame {
	return LinearMotion(name, n, x, y, x, y, start)
}
