// Package window precomputes the Hann analysis window and the triangular
// mel filterbank tables shared by every frame the MFCC extractor processes
// (spec §overview "WindowFn", §4.2). Tables are built once per extractor
// instance and never mutated, matching the determinism requirement in
// §4.2 (no per-call allocation of filter state).
package window

import "math"

// Hann returns an n-point Hann window, matching the periodic/symmetric
// formulation used throughout the retrieval pack's FFT preprocessing code
// (e.g. other_examples' jivefire ApplyHanning and the cvoalex mel
// processor's hannWindow).
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// MelFilterbank is a set of triangular filters over FFT magnitude bins,
// normalized so each filter's peak response is 2/(right-left), with left
// and right the filter's edge frequencies in Hz (the same
// area-normalization the pack's mel-processor.go uses).
type MelFilterbank struct {
	NumFilters int
	NumBins    int // number of FFT magnitude bins (frameSize/2 + 1)
	weights    [][]float64
}

// NewMelFilterbank builds a triangular mel filterbank spanning
// [lowFreqHz, highFreqHz] over numBins FFT magnitude bins computed from a
// sampleRate-Hz, frameSize-sample FFT. highFreqHz is clamped to the
// Nyquist frequency and lowFreqHz is clamped to 0, per §4.2.
func NewMelFilterbank(numFilters, frameSize, sampleRate int, lowFreqHz, highFreqHz float64) *MelFilterbank {
	nyquist := float64(sampleRate) / 2
	if lowFreqHz < 0 {
		lowFreqHz = 0
	}
	if highFreqHz <= 0 || highFreqHz > nyquist {
		highFreqHz = nyquist
	}

	numBins := frameSize/2 + 1
	fftFreqs := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		fftFreqs[i] = float64(i) * float64(sampleRate) / float64(frameSize)
	}

	melLow := hzToMel(lowFreqHz)
	melHigh := hzToMel(highFreqHz)

	melPoints := make([]float64, numFilters+2)
	for i := range melPoints {
		melPoints[i] = melLow + (melHigh-melLow)*float64(i)/float64(numFilters+1)
	}
	freqPoints := make([]float64, len(melPoints))
	for i, m := range melPoints {
		freqPoints[i] = melToHz(m)
	}

	weights := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		weights[m] = make([]float64, numBins)
		left, center, right := freqPoints[m], freqPoints[m+1], freqPoints[m+2]
		for b := 0; b < numBins; b++ {
			f := fftFreqs[b]
			switch {
			case f >= left && f <= center && center > left:
				weights[m][b] = (f - left) / (center - left)
			case f >= center && f <= right && right > center:
				weights[m][b] = (right - f) / (right - center)
			}
		}
		if denom := right - left; denom > 0 {
			norm := 2.0 / denom
			for b := range weights[m] {
				weights[m][b] *= norm
			}
		}
	}

	return &MelFilterbank{NumFilters: numFilters, NumBins: numBins, weights: weights}
}

// Apply projects a power-spectrum (length NumBins) onto the filterbank,
// writing NumFilters energies into out.
func (fb *MelFilterbank) Apply(powerSpectrum []float64, out []float64) {
	for m, row := range fb.weights {
		sum := 0.0
		for b, w := range row {
			if w != 0 {
				sum += w * powerSpectrum[b]
			}
		}
		out[m] = sum
	}
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}
