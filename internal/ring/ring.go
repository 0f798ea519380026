// Package ring implements the session-scoped sample queue described in
// spec §4.1. Unlike the lock-free SPSC ring buffers in the teacher's
// internal/audio package (capture.go, playback.go), this buffer is always
// called with the owning session's exclusive lock already held (I1), so a
// plain slice-backed circular buffer is sufficient — no atomics needed.
package ring

// DropPolicy selects what happens to incoming samples when the buffer is
// full. Real-time callers default to DropNewest (§4.1).
type DropPolicy int

const (
	DropNewest DropPolicy = iota
	DropOldest
)

// Buffer is a bounded FIFO queue of float32 samples with frame-sized
// draining and configurable overflow behavior.
type Buffer struct {
	data   []float32
	head   int // next read index
	count  int // number of valid samples currently queued
	policy DropPolicy
}

// New creates a Buffer with the given capacity. Capacity should be at
// least 2*frameSize so a frame is always extractable under real-time
// push/drain interleaving (§4.1).
func New(capacity int, policy DropPolicy) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{data: make([]float32, capacity), policy: policy}
}

// Len returns the number of samples currently queued.
func (b *Buffer) Len() int { return b.count }

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// PushSlice appends samples, applying the configured drop policy on
// overflow, and returns the number of samples actually retained (the
// teacher's ring buffers return a similar accepted/dropped signal from
// their push methods).
func (b *Buffer) PushSlice(samples []float32) int {
	capacity := len(b.data)
	accepted := 0

	for _, s := range samples {
		if b.count == capacity {
			switch b.policy {
			case DropOldest:
				// Advance head to discard the oldest sample, making room.
				b.head = (b.head + 1) % capacity
				b.count--
			default: // DropNewest
				continue
			}
		}
		writeIdx := (b.head + b.count) % capacity
		b.data[writeIdx] = s
		b.count++
		accepted++
	}
	return accepted
}

// DrainFrame copies the next frameSize samples into out (which must have
// length frameSize) without consuming them, then advances the read cursor
// by hop, leaving frameSize-hop samples for the next call to overlap with.
// Returns false if fewer than frameSize samples are currently queued.
func (b *Buffer) DrainFrame(out []float32, hop int) bool {
	frameSize := len(out)
	if b.count < frameSize {
		return false
	}
	capacity := len(b.data)
	for i := 0; i < frameSize; i++ {
		out[i] = b.data[(b.head+i)%capacity]
	}
	if hop > frameSize {
		hop = frameSize
	}
	b.head = (b.head + hop) % capacity
	b.count -= hop
	return true
}

// DrainPadded copies all remaining queued samples (fewer than len(out))
// into the front of out, zero-pads the rest, and consumes every queued
// sample. Used by finalize to force one last partial frame through the
// feature extractor (§4.7 step 1).
func (b *Buffer) DrainPadded(out []float32) {
	n := b.count
	if n > len(out) {
		n = len(out)
	}
	capacity := len(b.data)
	for i := 0; i < n; i++ {
		out[i] = b.data[(b.head+i)%capacity]
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	b.head = 0
	b.count = 0
}

// Clear discards all queued samples without releasing the backing array.
func (b *Buffer) Clear() {
	b.head = 0
	b.count = 0
}
