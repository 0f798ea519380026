package mfcc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sineFrame(freq float64, sampleRate int) []float32 {
	frame := make([]float32, FrameSize)
	for i := range frame {
		frame[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return frame
}

func TestExtractProducesFiniteCoefficients(t *testing.T) {
	e := NewExtractor(16000)
	out := make([]float64, NumCoefficients)
	require.NoError(t, e.Extract(sineFrame(440, 16000), out))
	for i, v := range out {
		assert.False(t, math.IsNaN(v), "coefficient %d is NaN", i)
		assert.False(t, math.IsInf(v, 0), "coefficient %d is Inf", i)
	}
}

func TestExtractRejectsNaN(t *testing.T) {
	e := NewExtractor(16000)
	frame := sineFrame(440, 16000)
	frame[10] = float32(math.NaN())
	out := make([]float64, NumCoefficients)
	// Poison out first to verify it is untouched on rejection.
	out[0] = 12345
	err := e.Extract(frame, out)
	assert.ErrorIs(t, err, ErrInvalidAudio)
	assert.Equal(t, 12345.0, out[0])
}

func TestExtractRejectsInf(t *testing.T) {
	e := NewExtractor(16000)
	frame := sineFrame(440, 16000)
	frame[0] = float32(math.Inf(1))
	out := make([]float64, NumCoefficients)
	assert.ErrorIs(t, e.Extract(frame, out), ErrInvalidAudio)
}

func TestExtractIsDeterministic(t *testing.T) {
	e := NewExtractor(16000)
	frame := sineFrame(523.25, 16000)
	out1 := make([]float64, NumCoefficients)
	out2 := make([]float64, NumCoefficients)
	require.NoError(t, e.Extract(frame, out1))
	require.NoError(t, e.Extract(frame, out2))
	assert.Equal(t, out1, out2)
}

func TestExtractorIsReusableAcrossDistinctFrames(t *testing.T) {
	e := NewExtractor(16000)
	a := make([]float64, NumCoefficients)
	b := make([]float64, NumCoefficients)
	require.NoError(t, e.Extract(sineFrame(200, 16000), a))
	require.NoError(t, e.Extract(sineFrame(3000, 16000), b))
	assert.NotEqual(t, a, b)
}

func TestEnergyReplacementOverwritesC0(t *testing.T) {
	e := NewExtractorWithOptions(16000, Options{EnableEnergyReplace: true})
	frame := sineFrame(440, 16000)
	out := make([]float64, NumCoefficients)
	require.NoError(t, e.Extract(frame, out))

	sumSquares := 0.0
	for _, s := range frame {
		f := float64(s)
		sumSquares += f * f
	}
	assert.InDelta(t, math.Log(sumSquares), out[0], 1e-9)
}

func TestLifterChangesHigherCoefficientsOnly(t *testing.T) {
	plain := NewExtractor(16000)
	lifted := NewExtractorWithOptions(16000, Options{EnableLifter: true})
	frame := sineFrame(880, 16000)

	a := make([]float64, NumCoefficients)
	b := make([]float64, NumCoefficients)
	require.NoError(t, plain.Extract(frame, a))
	require.NoError(t, lifted.Extract(frame, b))

	// k=0 term of the lifter weight is 1 (sin(0)=0), so coefficient 0 is
	// unaffected; higher coefficients generally differ.
	assert.InDelta(t, a[0], b[0], 1e-9)
	assert.NotEqual(t, a[1:], b[1:])
}

func TestSilenceProducesFiniteLogFloor(t *testing.T) {
	e := NewExtractor(16000)
	frame := make([]float32, FrameSize) // all zeros
	out := make([]float64, NumCoefficients)
	require.NoError(t, e.Extract(frame, out))
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestExtractNeverPanicsOnRandomFiniteFrames(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewExtractor(16000)
		frame := make([]float32, FrameSize)
		for i := range frame {
			frame[i] = float32(rapid.Float64Range(-1, 1).Draw(t, "sample"))
		}
		out := make([]float64, NumCoefficients)
		err := e.Extract(frame, out)
		require.NoError(t, err)
		for _, v := range out {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite coefficient: %v", v)
			}
		}
	})
}
