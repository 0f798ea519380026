package window

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHannEndpointsAreZero(t *testing.T) {
	w := Hann(512)
	assert.InDelta(t, 0, w[0], 1e-9)
	assert.InDelta(t, 0, w[len(w)-1], 1e-9)
	// Peak at the two center samples, just below 1 for an even length:
	// 0.5*(1+cos(pi/511)) = 1 - 9.4e-6.
	max := 0.0
	for _, v := range w {
		if v > max {
			max = v
		}
	}
	assert.InDelta(t, 0.5*(1+math.Cos(math.Pi/511)), max, 1e-9)
}

func TestHannSinglePoint(t *testing.T) {
	w := Hann(1)
	assert.Equal(t, []float64{1}, w)
}

func TestMelFilterbankRowsSumFinite(t *testing.T) {
	fb := NewMelFilterbank(26, 512, 16000, 0, 0)
	assert.Equal(t, 26, fb.NumFilters)
	assert.Equal(t, 257, fb.NumBins)

	power := make([]float64, fb.NumBins)
	for i := range power {
		power[i] = 1.0
	}
	out := make([]float64, fb.NumFilters)
	fb.Apply(power, out)
	for i, v := range out {
		assert.False(t, math.IsNaN(v), "filter %d produced NaN", i)
		assert.False(t, math.IsInf(v, 0), "filter %d produced Inf", i)
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestMelFilterbankClampsHighFreqToNyquist(t *testing.T) {
	// Requesting an absurd high frequency should clamp rather than produce
	// filters beyond Nyquist.
	fb := NewMelFilterbank(4, 256, 8000, 0, 100000)
	assert.Equal(t, 129, fb.NumBins)
	power := make([]float64, fb.NumBins)
	power[len(power)-1] = 1.0
	out := make([]float64, fb.NumFilters)
	fb.Apply(power, out)
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}
}

func TestHzMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 440, 4000, 8000} {
		mel := hzToMel(hz)
		back := melToHz(mel)
		assert.InDelta(t, hz, back, 1e-6)
	}
}
