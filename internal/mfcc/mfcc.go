// Package mfcc extracts mel-frequency cepstral coefficients from fixed-size
// audio frames (spec §4.2). The pipeline — Hann window, real FFT via
// gonum's dsp/fourier, triangular mel filterbank, log, type-II DCT — mirrors
// the STFT+mel-spectrogram pipeline in the retrieval pack's jivefire audio
// processor and cvoalex mel processor, adapted from a visualization/TTS
// front-end into a fixed 13-coefficient cepstral descriptor.
package mfcc

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sagebrush-audio/callgrade/internal/window"
)

const (
	FrameSize       = 512
	HopSize         = 256
	NumMelFilters   = 26
	NumCoefficients = 13
	logFloor        = 1e-10
	liftCoefficient = 22
)

// ErrInvalidAudio is returned when a frame contains a non-finite sample,
// matching the INVALID_AUDIO failure mode in §4.2.
var ErrInvalidAudio = errors.New("mfcc: non-finite sample in frame")

// Options configures optional post-processing steps, both disabled by
// default per §4.2.
type Options struct {
	EnableLifter         bool
	EnableEnergyReplace  bool
}

// Extractor holds the precomputed Hann window and mel filterbank so that
// Extract performs no per-call allocation of filter state, satisfying the
// determinism requirement in §4.2 (bit-identical output on repeated calls,
// no thread-local caches).
type Extractor struct {
	opts    Options
	hann    []float64
	filters *window.MelFilterbank
	fft     *fourier.FFT

	// scratch buffers reused across Extract calls.
	windowed []float64
	power    []float64
	melEnerg []float64
}

// NewExtractor builds an Extractor for the given sample rate. Mel
// filterbank bounds default to [0, Nyquist] per §4.2.
func NewExtractor(sampleRate int) *Extractor {
	fb := window.NewMelFilterbank(NumMelFilters, FrameSize, sampleRate, 0, 0)
	return &Extractor{
		hann:     window.Hann(FrameSize),
		filters:  fb,
		fft:      fourier.NewFFT(FrameSize),
		windowed: make([]float64, FrameSize),
		power:    make([]float64, fb.NumBins),
		melEnerg: make([]float64, NumMelFilters),
	}
}

// NewExtractorWithOptions builds an Extractor with lifter/energy-replacement
// toggles enabled.
func NewExtractorWithOptions(sampleRate int, opts Options) *Extractor {
	e := NewExtractor(sampleRate)
	e.opts = opts
	return e
}

// Extract computes the 13 MFCC coefficients for a single frame of exactly
// FrameSize samples, writing them into out (which must have length
// NumCoefficients). Returns ErrInvalidAudio without mutating out if any
// input sample is NaN or infinite.
func (e *Extractor) Extract(frame []float32, out []float64) error {
	if len(frame) != FrameSize {
		panic("mfcc: frame must have length FrameSize")
	}
	if len(out) != NumCoefficients {
		panic("mfcc: out must have length NumCoefficients")
	}

	sumSquares := 0.0
	for _, s := range frame {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidAudio
		}
		sumSquares += f * f
	}

	for i, s := range frame {
		e.windowed[i] = float64(s) * e.hann[i]
	}

	coeffs := e.fft.Coefficients(nil, e.windowed)
	for i := range e.power {
		c := coeffs[i]
		re, im := real(c), imag(c)
		e.power[i] = re*re + im*im
	}

	e.filters.Apply(e.power, e.melEnerg)

	logEnergies := make([]float64, NumMelFilters)
	for i, v := range e.melEnerg {
		if v < logFloor {
			v = logFloor
		}
		logEnergies[i] = math.Log(v)
	}

	dctII(logEnergies, out)

	if e.opts.EnableLifter {
		applyLifter(out, liftCoefficient)
	}

	if e.opts.EnableEnergyReplace {
		floor := sumSquares
		if floor < logFloor {
			floor = logFloor
		}
		out[0] = math.Log(floor)
	}

	return nil
}

// dctII computes the type-II discrete cosine transform of in, writing the
// first len(out) coefficients into out. No ecosystem DCT implementation
// was found anywhere in the retrieval pack, so this follows the direct
// O(N*K) summation definition (§11 of the design notes).
func dctII(in []float64, out []float64) {
	n := len(in)
	for k := 0; k < len(out); k++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		out[k] = sum
	}
}

// applyLifter scales coefficient k by (1 + L/2*sin(pi*k/L)), k=0 is left
// untouched by the sine term's zero at k=0 (§4.2 step 6).
func applyLifter(coeffs []float64, l float64) {
	for k := range coeffs {
		scale := 1.0 + (l/2.0)*math.Sin(math.Pi*float64(k)/l)
		coeffs[k] *= scale
	}
}
