package types

// StateBufferLen is the number of frames making up one state
const StateBufferLen = 4

// StateBuffer is a sliding window over the most recent frames.
// When full, pushing a frame drops the oldest one.
type StateBuffer struct {
	frames   []Frame
	capacity int
}

func NewStateBuffer(capacity int) *StateBuffer {
	if capacity <= 0 {
		capacity = StateBufferLen
	}
	return &StateBuffer{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
	}
}

func (b *StateBuffer) Push(f Frame) {
	if len(b.frames) >= b.capacity {
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:len(b.frames)-1]
	}
	b.frames = append(b.frames, f)
}

// Snapshot returns a copy of the window that later pushes do not affect
func (b *StateBuffer) Snapshot() []Frame {
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

func (b *StateBuffer) Len() int {
	return len(b.frames)
}

func (b *StateBuffer) Capacity() int {
	return b.capacity
}

func (b *StateBuffer) Reset() {
	b.frames = b.frames[:0]
}
