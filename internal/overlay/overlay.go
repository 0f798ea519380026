// Package overlay decimates recorded sample streams into peak-magnitude
// envelopes suitable for waveform-overlay UI rendering (spec §4.11).
package overlay

import "math"

// EnergyMap selects the rescaling curve applied when the master source is
// per-frame energies rather than raw audio (§4.11).
type EnergyMap int

const (
	EnergyMapLinear EnergyMap = iota
	EnergyMapSqrt
)

// Config controls decimation and source preference (§4.11).
type Config struct {
	MaxPoints              int
	UserDecimationOverride int // 0 means unset
	EnergyMap              EnergyMap
	PreferEnergyApprox     bool
}

// Overlay is the pair of equal-length, [0,1]-normalized peak envelopes.
type Overlay struct {
	User       []float32
	Master     []float32
	Decimation int // samples per bucket used to build User, per §6 get_waveform_overlay_data
	Valid      bool
}

// decimationFor computes max(userDecimationOverride, ceil(userSamples/maxPoints)).
func decimationFor(userSamples, maxPoints, override int) int {
	computed := 0
	if maxPoints > 0 {
		computed = (userSamples + maxPoints - 1) / maxPoints
	}
	if computed < 1 {
		computed = 1
	}
	if override > computed {
		return override
	}
	return computed
}

// bucketPeaks splits samples into buckets of decimation samples and emits
// max(|x|) per bucket.
func bucketPeaks(samples []float32, decimation int) []float32 {
	if decimation < 1 {
		decimation = 1
	}
	numBuckets := (len(samples) + decimation - 1) / decimation
	out := make([]float32, numBuckets)
	for b := 0; b < numBuckets; b++ {
		start := b * decimation
		end := start + decimation
		if end > len(samples) {
			end = len(samples)
		}
		var peak float32
		for _, s := range samples[start:end] {
			a := s
			if a < 0 {
				a = -a
			}
			if a > peak {
				peak = a
			}
		}
		out[b] = peak
	}
	return out
}

// resample linearly resamples src to exactly n points, used to align the
// master envelope to the user envelope's bucket count.
func resample(src []float32, n int) []float32 {
	if len(src) == 0 || n == 0 {
		return make([]float32, n)
	}
	out := make([]float32, n)
	if len(src) == 1 {
		for i := range out {
			out[i] = src[0]
		}
		return out
	}
	for i := 0; i < n; i++ {
		pos := float64(i) * float64(len(src)-1) / float64(n-1)
		if n == 1 {
			pos = 0
		}
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi >= len(src) {
			hi = len(src) - 1
		}
		frac := pos - float64(lo)
		out[i] = float32((1-frac)*float64(src[lo]) + frac*float64(src[hi]))
	}
	return out
}

func applyEnergyMap(m EnergyMap, v float32) float32 {
	if v < 0 {
		v = 0
	}
	switch m {
	case EnergyMapSqrt:
		return float32(math.Sqrt(float64(v)))
	default:
		return v
	}
}

// Build produces the aligned (user, master) peak envelope pair.
// masterRaw, when non-nil, is raw master sample audio; masterEnergies is
// the fallback per-frame energy sequence. If PreferEnergyApprox is set,
// masterEnergies is used even when masterRaw is available.
func Build(cfg Config, userSamples []float32, masterRaw []float32, masterEnergies []float32) Overlay {
	maxPoints := cfg.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 512
	}

	if len(userSamples) == 0 {
		return Overlay{Valid: false}
	}
	useEnergyApprox := cfg.PreferEnergyApprox || len(masterRaw) == 0
	if useEnergyApprox && len(masterEnergies) == 0 {
		return Overlay{Valid: false}
	}

	decimation := decimationFor(len(userSamples), maxPoints, cfg.UserDecimationOverride)
	userPeaks := bucketPeaks(userSamples, decimation)
	n := len(userPeaks)

	var masterPeaks []float32
	if useEnergyApprox {
		normalized := make([]float32, len(masterEnergies))
		maxEnergy := float32(0)
		for _, e := range masterEnergies {
			if e > maxEnergy {
				maxEnergy = e
			}
		}
		for i, e := range masterEnergies {
			if maxEnergy > 0 {
				e = e / maxEnergy
			}
			normalized[i] = applyEnergyMap(cfg.EnergyMap, e)
		}
		masterPeaks = resample(normalized, n)
	} else {
		masterDecimation := decimationFor(len(masterRaw), n, 0)
		raw := bucketPeaks(masterRaw, masterDecimation)
		masterPeaks = resample(raw, n)
	}

	return Overlay{User: userPeaks, Master: masterPeaks, Decimation: decimation, Valid: true}
}
