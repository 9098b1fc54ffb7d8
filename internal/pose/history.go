package pose

// DefaultHistoryCapacity holds about two seconds of frames at 30fps.
const DefaultHistoryCapacity = 60

// History is a bounded FIFO of recent frames. The oldest frame is evicted
// once capacity is reached. It is not safe for concurrent use.
type History struct {
	frames   []Frame
	capacity int
}

// NewHistory creates a History holding at most capacity frames.
// Non-positive capacities fall back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest one beyond capacity.
func (h *History) Push(f Frame) {
	if len(h.frames) >= h.capacity {
		// Shift left by 1, dropping the oldest frame
		copy(h.frames, h.frames[1:])
		h.frames = h.frames[:h.capacity-1]
	}
	h.frames = append(h.frames, f)
}

// Window returns the most recent k frames, or fewer if the history is shorter.
// The returned slice is a view into the buffer and is only valid until the
// next Push; callers must not modify it.
func (h *History) Window(k int) []Frame {
	if k <= 0 {
		return nil
	}
	if k > len(h.frames) {
		k = len(h.frames)
	}
	return h.frames[len(h.frames)-k:]
}

// Latest returns the most recent frame.
func (h *History) Latest() (Frame, bool) {
	if len(h.frames) == 0 {
		return Frame{}, false
	}
	return h.frames[len(h.frames)-1], true
}

// Len returns the number of buffered frames.
func (h *History) Len() int {
	return len(h.frames)
}

// Capacity returns the maximum number of buffered frames.
func (h *History) Capacity() int {
	return h.capacity
}

// Reset drops all buffered frames.
func (h *History) Reset() {
	h.frames = h.frames[:0]
}
