package pose

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Source delivers pose frames one tick at a time. The frame channel is closed
// when the source is exhausted or ctx is cancelled; at most one error is sent
// on the error channel before both channels close.
type Source interface {
	Frames(ctx context.Context) (<-chan Frame, <-chan error)
}

// StreamSource decodes newline-delimited JSON frames from a reader. Each line
// is a Frame object; blank lines are ignored.
type StreamSource struct {
	r io.Reader
}

// NewStreamSource creates a StreamSource reading from r.
func NewStreamSource(r io.Reader) *StreamSource {
	return &StreamSource{r: r}
}

// Frames implements Source.
func (s *StreamSource) Frames(ctx context.Context) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		line := 0
		for scanner.Scan() {
			line++
			data := scanner.Bytes()
			if len(data) == 0 {
				continue
			}

			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				errs <- fmt.Errorf("parse frame at line %d: %w", line, err)
				return
			}

			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read frames: %w", err)
		}
	}()

	return frames, errs
}
