package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{
		EnergyThreshold:   0.01,
		WindowDurationS:   0.025,
		MinSoundDurationS: 0.1,
		PreBufferS:        0.1,
		PostBufferS:       0.2,
		Enabled:           true,
	}
}

func TestDisabledForwardsEveryFrame(t *testing.T) {
	v := New(Config{Enabled: false})
	d := v.ProcessFrame(0)
	assert.True(t, d.RetainCurrent)
	assert.Equal(t, Silence, v.State())
}

func TestSilenceToCandidateFlagsPreBuffer(t *testing.T) {
	v := New(defaultConfig())
	// Four silent frames buffered before the loud one (0.025s each = 0.1s).
	for i := 0; i < 4; i++ {
		d := v.ProcessFrame(0)
		assert.False(t, d.RetainCurrent)
	}
	d := v.ProcessFrame(1.0)
	require.Equal(t, Candidate, v.State())
	assert.True(t, d.RetainCurrent)
	assert.Equal(t, 4, d.RetroactiveCount)
}

func TestCandidateRequiresSustainedDuration(t *testing.T) {
	v := New(defaultConfig())
	v.ProcessFrame(1.0) // -> CANDIDATE, 0.025s accumulated
	assert.Equal(t, Candidate, v.State())
	v.ProcessFrame(1.0) // 0.05s
	assert.Equal(t, Candidate, v.State())
	v.ProcessFrame(1.0) // 0.075s
	assert.Equal(t, Candidate, v.State())
	v.ProcessFrame(1.0) // 0.1s >= min_sound_duration_s
	assert.Equal(t, Active, v.State())
}

func TestCandidateDropsBackToSilenceOnPrematureDrop(t *testing.T) {
	v := New(defaultConfig())
	v.ProcessFrame(1.0) // CANDIDATE
	require.Equal(t, Candidate, v.State())
	d := v.ProcessFrame(0) // below threshold before sustaining
	assert.Equal(t, Silence, v.State())
	assert.False(t, d.RetainCurrent)
}

func enterActive(v *Vad) {
	for i := 0; i < 5; i++ {
		v.ProcessFrame(1.0)
	}
}

func TestActiveToTrailingToSilence(t *testing.T) {
	v := New(defaultConfig())
	enterActive(v)
	require.Equal(t, Active, v.State())

	d := v.ProcessFrame(0)
	assert.Equal(t, Trailing, v.State())
	assert.True(t, d.RetainCurrent, "trailing frames are emitted as active")

	// post_buffer_s = 0.2s, window = 0.025s -> 8 frames to exceed.
	for i := 0; i < 7; i++ {
		d := v.ProcessFrame(0)
		assert.Equal(t, Trailing, v.State())
		assert.True(t, d.RetainCurrent)
	}
	d = v.ProcessFrame(0)
	assert.Equal(t, Silence, v.State())
	assert.False(t, d.RetainCurrent)
}

func TestTrailingReturnsToActiveOnRenewedEnergy(t *testing.T) {
	v := New(defaultConfig())
	enterActive(v)
	v.ProcessFrame(0)
	require.Equal(t, Trailing, v.State())
	v.ProcessFrame(1.0)
	assert.Equal(t, Active, v.State())
}

func TestResetClearsState(t *testing.T) {
	v := New(defaultConfig())
	enterActive(v)
	v.Reset()
	assert.Equal(t, Silence, v.State())
}

func TestEnableDisableTogglesWithoutReset(t *testing.T) {
	v := New(defaultConfig())
	enterActive(v)
	require.Equal(t, Active, v.State())
	v.Disable()
	d := v.ProcessFrame(0)
	assert.True(t, d.RetainCurrent) // forwards everything while disabled
	assert.Equal(t, Active, v.State(), "disabling must not reset state")
	v.Enable()
	assert.True(t, v.cfg.Enabled)
}
