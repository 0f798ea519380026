package callgrade

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSamples(freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

func referenceFrames(n int) [][]float32 {
	frames := make([][]float32, n)
	for i := range frames {
		f := make([]float32, 13)
		for j := range f {
			f[j] = float32(0.1*float64(j) + 0.01*float64(i))
		}
		frames[i] = f
	}
	return frames
}

func TestCreateSessionRejectsNonPositiveSampleRate(t *testing.T) {
	e := NewEngine()
	_, err := e.CreateSession(0)
	assert.ErrorIs(t, err, StatusInvalidParams.Err())
	_, err = e.CreateSession(-16000)
	assert.ErrorIs(t, err, StatusInvalidParams.Err())
}

func TestCreateSessionAllocatesMonotonicIDs(t *testing.T) {
	e := NewEngine()
	a, err := e.CreateSession(16000)
	require.NoError(t, err)
	b, err := e.CreateSession(16000)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Greater(t, b, a)
}

func TestSessionCapEnforced(t *testing.T) {
	e := NewEngine()
	for i := 0; i < MaxSessions; i++ {
		_, err := e.CreateSession(16000)
		require.NoError(t, err)
	}
	_, err := e.CreateSession(16000)
	assert.ErrorIs(t, err, StatusResourceExhausted.Err())

	// Destroying one restores capacity (§8 B2).
	require.NoError(t, e.DestroySession(SessionId(1)))
	_, err = e.CreateSession(16000)
	assert.NoError(t, err)
}

func TestDoubleDestroyReturnsOKThenSessionNotFound(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	require.NoError(t, e.DestroySession(id))
	err = e.DestroySession(id)
	assert.ErrorIs(t, err, StatusSessionNotFound.Err())
}

func TestUnknownSessionOperationsReturnSessionNotFound(t *testing.T) {
	e := NewEngine()
	_, err := e.GetSimilarityScore(SessionId(999))
	assert.ErrorIs(t, err, StatusSessionNotFound.Err())
}

func TestProcessAudioChunkRejectsEmptyAndNonFinite(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)

	assert.ErrorIs(t, e.ProcessAudioChunk(id, nil), StatusInvalidParams.Err())

	bad := sineSamples(440, 16000, 100)
	bad[50] = float32(math.NaN())
	assert.ErrorIs(t, e.ProcessAudioChunk(id, bad), StatusInvalidParams.Err())

	count, err := e.GetFeatureCount(id)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "rejected chunk must not mutate feature count (P5)")
}

func TestProcessAudioChunkAfterFinalizeReturnsAlreadyFinalized(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	require.NoError(t, e.InjectMasterFeatures(id, referenceFrames(64)))
	require.NoError(t, e.ProcessAudioChunk(id, sineSamples(440, 16000, 16000)))
	require.NoError(t, e.FinalizeSessionAnalysis(id))

	err = e.ProcessAudioChunk(id, sineSamples(440, 16000, 1000))
	assert.ErrorIs(t, err, StatusAlreadyFinalized.Err())
}

func TestFinalizeOnEmptySessionReturnsInsufficientData(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	err = e.FinalizeSessionAnalysis(id)
	assert.ErrorIs(t, err, StatusInsufficientData.Err())
}

func TestFinalizeIsIdempotentAfterFirstOK(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	require.NoError(t, e.InjectMasterFeatures(id, referenceFrames(64)))
	require.NoError(t, e.ProcessAudioChunk(id, sineSamples(440, 16000, 16000)))
	require.NoError(t, e.FinalizeSessionAnalysis(id))

	err = e.FinalizeSessionAnalysis(id)
	assert.ErrorIs(t, err, StatusAlreadyFinalized.Err())
}

func TestResetClearsFeatureCountAndPeak(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	require.NoError(t, e.InjectMasterFeatures(id, referenceFrames(64)))
	require.NoError(t, e.ProcessAudioChunk(id, sineSamples(440, 16000, 16000)))

	require.NoError(t, e.ResetSession(id))

	count, err := e.GetFeatureCount(id)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	rt, err := e.GetRealtimeSimilarityState(id)
	require.NoError(t, err)
	assert.Equal(t, 0, rt.FramesObserved)

	active, err := e.IsSessionActive(id)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestConfigureDtwBoundaryValues(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)

	for _, v := range []float32{0.0, 0.5, 1.0} {
		assert.NoError(t, e.ConfigureDtw(id, v))
	}
	for _, v := range []float32{-0.1, 1.1} {
		assert.ErrorIs(t, e.ConfigureDtw(id, v), StatusInvalidParams.Err())
	}
}

func TestSimilarityScoreIsBoundedAndPeakNeverDecreases(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	require.NoError(t, e.InjectMasterFeatures(id, referenceFrames(200)))

	var lastPeak float32
	for i := 0; i < 10; i++ {
		require.NoError(t, e.ProcessAudioChunk(id, sineSamples(300+float64(i)*37, 16000, 4000)))
		snap, err := e.GetSimilarityScores(id)
		if err != nil {
			continue
		}
		assert.GreaterOrEqual(t, snap.Overall, float32(0))
		assert.LessOrEqual(t, snap.Overall, float32(1))
		assert.GreaterOrEqual(t, snap.Peak, snap.Overall, "P2: peak >= current")
		assert.GreaterOrEqual(t, snap.Peak, lastPeak, "peak must never decrease")
		lastPeak = snap.Peak
	}
}

func TestIsolationBetweenSessions(t *testing.T) {
	e := NewEngine()
	a, err := e.CreateSession(16000)
	require.NoError(t, err)
	b, err := e.CreateSession(16000)
	require.NoError(t, err)

	require.NoError(t, e.ProcessAudioChunk(a, sineSamples(440, 16000, 8000)))

	countA, err := e.GetFeatureCount(a)
	require.NoError(t, err)
	countB, err := e.GetFeatureCount(b)
	require.NoError(t, err)

	assert.Greater(t, countA, 0)
	assert.Equal(t, 0, countB, "P4: mutating session A must not affect session B")
}

func TestCoachingFeedbackJSONExport(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	require.NoError(t, e.SetEnhancedConfidences(id, 0.9, 0.9, 0.9))

	js, err := e.ExportCoachingFeedbackToJSON(id)
	require.NoError(t, err)
	assert.Contains(t, js, "suggestions")
}

func TestWaveformOverlayRequiresRecordedAudio(t *testing.T) {
	e := NewEngine()
	id, err := e.CreateSession(16000)
	require.NoError(t, err)
	_, err = e.GetWaveformOverlayData(id, DefaultOverlayConfig())
	assert.ErrorIs(t, err, StatusInsufficientData.Err())

	require.NoError(t, e.InjectMasterFeatures(id, referenceFrames(64)))
	require.NoError(t, e.ProcessAudioChunk(id, sineSamples(440, 16000, 16000)))
	overlayData, err := e.GetWaveformOverlayData(id, DefaultOverlayConfig())
	require.NoError(t, err)
	assert.True(t, overlayData.Valid)
	assert.Equal(t, len(overlayData.UserPeaks), len(overlayData.MasterPeaks))
	assert.Greater(t, overlayData.Decimation, 0, "decimation must be surfaced per §6 get_waveform_overlay_data")
}

func TestFeedChunkSizeDoesNotMateriallyChangeFeatureCount(t *testing.T) {
	// L2: one big slice vs many small slices should produce feature counts
	// within +/-1 of each other.
	e := NewEngine()
	big, err := e.CreateSession(16000)
	require.NoError(t, err)
	small, err := e.CreateSession(16000)
	require.NoError(t, err)

	samples := sineSamples(440, 16000, 16000)
	require.NoError(t, e.ProcessAudioChunk(big, samples))

	for i := 0; i < len(samples); i += 100 {
		end := i + 100
		if end > len(samples) {
			end = len(samples)
		}
		require.NoError(t, e.ProcessAudioChunk(small, samples[i:end]))
	}

	bigCount, err := e.GetFeatureCount(big)
	require.NoError(t, err)
	smallCount, err := e.GetFeatureCount(small)
	require.NoError(t, err)
	assert.InDelta(t, bigCount, smallCount, 1)
}
