// Package loudness tracks running RMS of user audio against a cached
// master RMS and derives the normalization scalar and loudness-deviation
// metrics consumed by coaching feedback (spec §4.8).
package loudness

import "math"

// Epsilon guards every division against a zero master/user RMS (§4.8).
const Epsilon = 1e-9

// Tracker accumulates sum-of-squares and sample count for the user signal.
type Tracker struct {
	sumSq      float64
	sampleCnt  int64
	masterRMS  float64
}

// New creates a Tracker with the given master RMS, cached at master load.
func New(masterRMS float64) *Tracker {
	return &Tracker{masterRMS: masterRMS}
}

// SetMasterRMS updates the cached master RMS (called on master reload).
func (t *Tracker) SetMasterRMS(rms float64) {
	t.masterRMS = rms
}

// Accumulate folds a slice of raw user samples into the running
// sum-of-squares.
func (t *Tracker) Accumulate(samples []float32) {
	for _, s := range samples {
		f := float64(s)
		t.sumSq += f * f
	}
	t.sampleCnt += int64(len(samples))
}

// Reset clears the accumulated user statistics (session reset); the
// cached master RMS is preserved, matching §4.12's "keeps ... master_call_id
// (the master reference is preserved to avoid reparse)".
func (t *Tracker) Reset() {
	t.sumSq = 0
	t.sampleCnt = 0
}

// SampleCount returns the number of samples accumulated since the last
// Reset, used to stamp segment duration at finalize.
func (t *Tracker) SampleCount() int64 { return t.sampleCnt }

// UserRMS returns sqrt(sum_sq/count), or 0 if no samples were accumulated.
func (t *Tracker) UserRMS() float64 {
	if t.sampleCnt == 0 {
		return 0
	}
	return math.Sqrt(t.sumSq / float64(t.sampleCnt))
}

// NormalizationScalar is clamp(master_rms / max(user_rms, eps), 0.25, 4.0);
// 1.0 when user_rms is zero (§4.8).
func (t *Tracker) NormalizationScalar() float64 {
	userRMS := t.UserRMS()
	if userRMS == 0 {
		return 1.0
	}
	denom := userRMS
	if denom < Epsilon {
		denom = Epsilon
	}
	scalar := t.masterRMS / denom
	if scalar < 0.25 {
		scalar = 0.25
	}
	if scalar > 4.0 {
		scalar = 4.0
	}
	return scalar
}

// LoudnessDeviation is (user_rms - master_rms) / max(master_rms, eps); 0
// when master_rms is zero; -1 when user_rms=0 and master_rms>0 (§4.8).
func (t *Tracker) LoudnessDeviation() float64 {
	userRMS := t.UserRMS()
	if t.masterRMS == 0 {
		return 0
	}
	if userRMS == 0 {
		return -1
	}
	denom := t.masterRMS
	if denom < Epsilon {
		denom = Epsilon
	}
	return (userRMS - t.masterRMS) / denom
}
