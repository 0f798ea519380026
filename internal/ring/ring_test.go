package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDrainFrameRequiresFullFrame(t *testing.T) {
	b := New(16, DropNewest)
	out := make([]float32, 8)
	assert.False(t, b.DrainFrame(out, 4))

	n := b.PushSlice([]float32{1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, 7, n)
	assert.False(t, b.DrainFrame(out, 4))

	b.PushSlice([]float32{8})
	require.True(t, b.DrainFrame(out, 4))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, out)
	assert.Equal(t, 4, b.Len())
}

func TestDrainFrameOverlap(t *testing.T) {
	b := New(32, DropNewest)
	b.PushSlice([]float32{1, 2, 3, 4, 5, 6})
	out := make([]float32, 4)
	require.True(t, b.DrainFrame(out, 2))
	assert.Equal(t, []float32{1, 2, 3, 4}, out)

	require.True(t, b.DrainFrame(out, 2))
	assert.Equal(t, []float32{3, 4, 5, 6}, out)
}

func TestDropNewestDiscardsOverflow(t *testing.T) {
	b := New(4, DropNewest)
	n := b.PushSlice([]float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, b.Len())
}

func TestDropOldestKeepsNewest(t *testing.T) {
	b := New(4, DropOldest)
	b.PushSlice([]float32{1, 2, 3, 4, 5, 6})
	out := make([]float32, 4)
	require.True(t, b.DrainFrame(out, 4))
	assert.Equal(t, []float32{3, 4, 5, 6}, out)
}

func TestClear(t *testing.T) {
	b := New(8, DropNewest)
	b.PushSlice([]float32{1, 2, 3})
	b.Clear()
	assert.Equal(t, 0, b.Len())
	out := make([]float32, 1)
	assert.False(t, b.DrainFrame(out, 1))
}

// Property: draining reconstructs the retained (newest) suffix of the
// pushed samples, frame by frame, as long as enough samples remain queued.
func TestDrainFrameIsPrefixOfPushed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(8, 64).Draw(t, "capacity")
		frameSize := rapid.IntRange(1, 6).Draw(t, "frameSize")
		hop := rapid.IntRange(1, frameSize).Draw(t, "hop")

		b := New(capacity, DropOldest)
		pushed := rapid.SliceOfN(rapid.Float32Range(-1, 1), 0, capacity*3).Draw(t, "samples")
		b.PushSlice(pushed)

		// Whatever is retained must be a suffix of pushed (DropOldest keeps newest).
		retained := b.Len()
		if retained > len(pushed) {
			t.Fatalf("retained %d > pushed %d", retained, len(pushed))
		}
		expected := pushed[len(pushed)-retained:]

		out := make([]float32, frameSize)
		pos := 0
		for b.DrainFrame(out, hop) {
			for i, v := range out {
				if pos+i < len(expected) {
					if expected[pos+i] != v {
						t.Fatalf("mismatch at %d: want %v got %v", pos+i, expected[pos+i], v)
					}
				}
			}
			pos += hop
		}
	})
}
