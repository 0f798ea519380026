package callgrade

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sagebrush-audio/callgrade/internal/aggregator"
	"github.com/sagebrush-audio/callgrade/internal/coaching"
	"github.com/sagebrush-audio/callgrade/internal/dtw"
	"github.com/sagebrush-audio/callgrade/internal/loudness"
	"github.com/sagebrush-audio/callgrade/internal/masterstore"
	"github.com/sagebrush-audio/callgrade/internal/mfcc"
	"github.com/sagebrush-audio/callgrade/internal/overlay"
	"github.com/sagebrush-audio/callgrade/internal/ring"
	"github.com/sagebrush-audio/callgrade/internal/status"
	"github.com/sagebrush-audio/callgrade/internal/vad"
	"github.com/sagebrush-audio/callgrade/internal/wavexport"
)

// SessionId is an opaque, monotonically allocated session handle (§3).
// Zero is the distinguished invalid value.
type SessionId uint32

// InvalidSessionId is never returned by create_session.
const InvalidSessionId SessionId = 0

// SessionState is one of the three lifecycle states a session passes
// through (§4.12).
type SessionState int

const (
	StateReady SessionState = iota
	StateActive
	StateFinalized
)

// RealtimeState reports streaming scoring progress (§6
// get_realtime_similarity_state).
type RealtimeState struct {
	FramesObserved    int
	MinFramesRequired int
	Reliable          bool
}

// EnhancedSummary is the optional pitch/harmonic/cadence view (§4.10).
type EnhancedSummary struct {
	Valid               bool
	PitchConfidence     float32
	HarmonicConfidence  float32
	CadenceConfidence   float32
	PitchGrade          coaching.Grade
	HarmonicGrade       coaching.Grade
	CadenceGrade        coaching.Grade
	SimilarityAtFinalize float32
	NormalizationScalar float64
	LoudnessDeviation   float64
	Finalized           bool
	SegmentDurationMs   int64
}

// Session is the unit of isolation: one user recording graded against at
// most one loaded master call at a time. All mutating and reading
// operations acquire the session's exclusive lock for the call's
// duration (I1, §5).
type Session struct {
	mu sync.Mutex

	id         SessionId
	sampleRate int
	createdAt  time.Time
	clock      Clock

	state SessionState

	masterCallID   string
	masterFeatures *masterstore.FeatureMatrix
	masterStore    *masterstore.Store

	sessionFeatures []dtw.Frame
	pendingFrames   []dtw.Frame // frames buffered during SILENCE, not yet committed

	ringBuf   *ring.Buffer
	extractor *mfcc.Extractor
	vadMachine *vad.Vad
	vadCfg    vad.Config

	recording    []float32
	recordingCfg RecordingConfig

	dtwWindowRatio float32
	aggCfg         AggregatorConfig
	overlayCfg     OverlayConfig
	finalizeCfg    FinalizeConfig
	enhancedCfg    EnhancedSummaryConfig

	loudnessTracker *loudness.Tracker

	framesObserved     int
	lastSimilarity     float32
	peak               float32
	similarityAtFinalize float32

	finalized           bool
	finalizeFallbackUsed bool
	segmentDurationMs   int64

	enhancedEnabled     bool
	pitchConfidence     float32
	harmonicConfidence  float32
	cadenceConfidence   float32
	enhancedUpdatedAt   time.Time

	lastActivityTime time.Time

	logger *log.Logger
}

const frameBufSize = mfcc.FrameSize
const frameHop = mfcc.HopSize

// newSession constructs a Session in state READY. sampleRate must be > 0.
func newSession(id SessionId, sampleRate int, clock Clock, logger *log.Logger) *Session {
	now := clock.Now()
	return &Session{
		id:              id,
		sampleRate:      sampleRate,
		createdAt:       now,
		clock:           clock,
		state:           StateReady,
		ringBuf:         ring.New(frameBufSize*4, ring.DropNewest),
		extractor:       mfcc.NewExtractor(sampleRate),
		vadMachine:      vad.New(toVadConfig(DefaultVadConfig())),
		vadCfg:          toVadConfig(DefaultVadConfig()),
		recordingCfg:    DefaultRecordingConfig(),
		dtwWindowRatio:  DefaultDtwConfig().WindowRatio,
		aggCfg:          DefaultAggregatorConfig(),
		overlayCfg:      DefaultOverlayConfig(),
		finalizeCfg:     DefaultFinalizeConfig(),
		enhancedCfg:     DefaultEnhancedSummaryConfig(),
		loudnessTracker: loudness.New(0),
		lastActivityTime: now,
		logger:          logger,
	}
}

func toVadConfig(c VadConfig) vad.Config {
	return vad.Config{
		EnergyThreshold:   c.EnergyThreshold,
		WindowDurationS:   c.WindowDurationS,
		MinSoundDurationS: c.MinSoundDurationS,
		PreBufferS:        c.PreBufferS,
		PostBufferS:       c.PostBufferS,
		Enabled:           c.Enabled,
	}
}

func fromVadConfig(c vad.Config) VadConfig {
	return VadConfig{
		EnergyThreshold:   c.EnergyThreshold,
		WindowDurationS:   c.WindowDurationS,
		MinSoundDurationS: c.MinSoundDurationS,
		PreBufferS:        c.PreBufferS,
		PostBufferS:       c.PostBufferS,
		Enabled:           c.Enabled,
	}
}

// LoadMasterCall resolves callID via store, replacing any previously
// loaded master. A failed load leaves masterFeatures unchanged (§4.4).
func (s *Session) LoadMasterCall(store *masterstore.Store, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matrix, err := store.Load(callID)
	if err != nil {
		s.logger.Warn("master call load failed", "call_id", callID, "err", err)
		return err
	}

	if s.masterFeatures != nil && s.masterStore != nil {
		s.masterStore.Release(s.masterCallID)
	}

	s.masterStore = store
	s.masterCallID = callID
	s.masterFeatures = matrix
	s.masterRMSFromMatrix()

	// Reload clears derived scoring state but preserves session audio
	// history (§4.4 I4); does not change lifecycle state.
	s.lastSimilarity = 0
	s.peak = 0
	s.lastActivityTime = s.clock.Now()
	s.logger.Info("master call loaded", "call_id", callID, "frames", matrix.Frames)
	return nil
}

// masterRMSFromMatrix sets the master RMS used by loudnessTracker. The
// .mfc format carries no RMS field, so this defaults to a neutral
// passthrough (0); the true master RMS lives in whatever external
// preprocessing pipeline produced the .mfc file (§4.8). SetMasterRMS
// remains the seam for a future format revision to supply a real value.
//
// TODO: with master RMS pinned at 0, NormalizationScalar sits at its 0.25
// floor and LoudnessDeviation is always 0 for every loaded master, so the
// §4.9 "increase/reduce volume" coaching rules never fire outside direct
// unit tests against internal/coaching. Extending the .mfc format with a
// trailing master-RMS field (or a sidecar file next to it) would close
// this end-to-end, rather than only through SetMasterRMS's test seam.
func (s *Session) masterRMSFromMatrix() {
	s.loudnessTracker.SetMasterRMS(0)
}

// UnloadMasterCall clears the loaded master reference (§6).
func (s *Session) UnloadMasterCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterFeatures != nil && s.masterStore != nil {
		s.masterStore.Release(s.masterCallID)
	}
	s.masterFeatures = nil
	s.masterCallID = ""
	s.lastSimilarity = 0
	s.peak = 0
}

// ProcessAudioChunk pushes samples through the ring buffer, frames them,
// runs VAD-gated retention, and recomputes the similarity score.
func (s *Session) ProcessAudioChunk(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return status.AlreadyFinalized.Err()
	}
	if len(samples) == 0 {
		return status.InvalidParams.Err()
	}
	for _, v := range samples {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return status.InvalidParams.Err()
		}
	}

	s.state = StateActive
	s.loudnessTracker.Accumulate(samples)
	if s.recordingCfg.Enabled {
		s.appendRecording(samples)
	}

	// The chunk enters the ring buffer only as fast as it has room, with
	// frames drained in between, so no sample is dropped and the frames
	// produced do not depend on how the caller splits the stream.
	frame := make([]float32, frameBufSize)
	coeffs := make([]float64, mfcc.NumCoefficients)
	remaining := samples
	for {
		if !s.ringBuf.DrainFrame(frame, frameHop) {
			if len(remaining) == 0 {
				break
			}
			n := min(s.ringBuf.Cap()-s.ringBuf.Len(), len(remaining))
			s.ringBuf.PushSlice(remaining[:n])
			remaining = remaining[n:]
			continue
		}
		if err := s.extractor.Extract(frame, coeffs); err != nil {
			continue // non-finite frame content; skip, chunk-level check already guards NaN/Inf input
		}

		energy := float32(0)
		for _, v := range frame {
			energy += v * v
		}

		prevState := s.vadMachine.State()
		decision := s.vadMachine.ProcessFrame(energy)
		if newState := s.vadMachine.State(); newState != prevState {
			s.logger.Debug("vad transition", "from", prevState, "to", newState)
		}
		f32frame := make(dtw.Frame, mfcc.NumCoefficients)
		for i, c := range coeffs {
			f32frame[i] = float32(c)
		}

		if !decision.RetainCurrent {
			s.pendingFrames = append(s.pendingFrames, f32frame)
			maxPending := preBufferFrameCap(s.vadCfg)
			if len(s.pendingFrames) > maxPending {
				s.pendingFrames = s.pendingFrames[len(s.pendingFrames)-maxPending:]
			}
			continue
		}

		if decision.RetroactiveCount > 0 && decision.RetroactiveCount <= len(s.pendingFrames) {
			start := len(s.pendingFrames) - decision.RetroactiveCount
			s.sessionFeatures = append(s.sessionFeatures, s.pendingFrames[start:]...)
		}
		s.pendingFrames = s.pendingFrames[:0]
		s.sessionFeatures = append(s.sessionFeatures, f32frame)
	}

	s.framesObserved = len(s.sessionFeatures)
	s.lastActivityTime = s.clock.Now()

	if s.masterFeatures != nil && len(s.sessionFeatures) > 0 {
		s.recomputeSimilarity()
	}
	return nil
}

func preBufferFrameCap(cfg vad.Config) int {
	if cfg.WindowDurationS <= 0 {
		return 1
	}
	n := int(cfg.PreBufferS / cfg.WindowDurationS)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Session) appendRecording(samples []float32) {
	limit := int(s.recordingCfg.MaxDurationS * float32(s.sampleRate))
	s.recording = append(s.recording, samples...)
	if len(s.recording) > limit {
		s.recording = s.recording[len(s.recording)-limit:]
	}
}

func (s *Session) masterFrames() []dtw.Frame {
	if s.masterFeatures == nil {
		return nil
	}
	out := make([]dtw.Frame, s.masterFeatures.Frames)
	for i := range out {
		out[i] = s.masterFeatures.Frame(i)
	}
	return out
}

func (s *Session) recomputeSimilarity() {
	cfg := aggregator.Config{
		Weights: aggregator.Weights{
			Offset:      s.aggCfg.Weights.Offset,
			DTW:         s.aggCfg.Weights.DTW,
			Mean:        s.aggCfg.Weights.Mean,
			Subsequence: s.aggCfg.Weights.Subsequence,
		},
		MinFramesRequired: s.aggCfg.MinFramesRequired,
		MinScoreForMatch:  s.aggCfg.MinScoreForMatch,
	}
	snap, peak, err := aggregator.Score(cfg, s.sessionFeatures, s.masterFrames(), s.dtwWindowRatio, s.framesObserved, s.peak)
	if err != nil {
		return
	}
	s.lastSimilarity = snap.Overall
	s.peak = peak
}

// GetSimilarityScore returns the overall similarity in [0,1].
func (s *Session) GetSimilarityScore() (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterFeatures == nil || len(s.sessionFeatures) == 0 {
		return 0, status.InsufficientData.Err()
	}
	cfg := s.currentAggregatorConfig()
	snap, _, err := aggregator.Score(cfg, s.sessionFeatures, s.masterFrames(), s.dtwWindowRatio, s.framesObserved, s.peak)
	if err != nil {
		return 0, err
	}
	return snap.Overall, nil
}

// GetSimilarityScores returns the full component snapshot (§4.6).
func (s *Session) GetSimilarityScores() (aggregator.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterFeatures == nil || len(s.sessionFeatures) == 0 {
		return aggregator.Snapshot{}, status.InsufficientData.Err()
	}
	cfg := s.currentAggregatorConfig()
	snap, peak, err := aggregator.Score(cfg, s.sessionFeatures, s.masterFrames(), s.dtwWindowRatio, s.framesObserved, s.peak)
	if err != nil {
		return aggregator.Snapshot{}, err
	}
	s.peak = peak
	return snap, nil
}

func (s *Session) currentAggregatorConfig() aggregator.Config {
	return aggregator.Config{
		Weights: aggregator.Weights{
			Offset:      s.aggCfg.Weights.Offset,
			DTW:         s.aggCfg.Weights.DTW,
			Mean:        s.aggCfg.Weights.Mean,
			Subsequence: s.aggCfg.Weights.Subsequence,
		},
		MinFramesRequired: s.aggCfg.MinFramesRequired,
		MinScoreForMatch:  s.aggCfg.MinScoreForMatch,
	}
}

// GetFeatureCount returns the number of committed session feature frames.
func (s *Session) GetFeatureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessionFeatures)
}

// GetRealtimeSimilarityState reports streaming progress (§6).
func (s *Session) GetRealtimeSimilarityState() RealtimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RealtimeState{
		FramesObserved:    s.framesObserved,
		MinFramesRequired: s.aggCfg.MinFramesRequired,
		Reliable:          s.framesObserved >= s.aggCfg.MinFramesRequired,
	}
}

// ConfigureVad replaces the VAD configuration wholesale.
func (s *Session) ConfigureVad(cfg VadConfig) error {
	if !cfg.Valid() {
		return status.InvalidParams.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vadCfg = toVadConfig(cfg)
	s.vadMachine = vad.New(s.vadCfg)
	return nil
}

// GetVadConfig returns the session's current VAD configuration.
func (s *Session) GetVadConfig() VadConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fromVadConfig(s.vadCfg)
}

// EnableVad / DisableVad toggle the flag without discarding state (§4.3).
func (s *Session) EnableVad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vadCfg.Enabled = true
	s.vadMachine.Enable()
}

func (s *Session) DisableVad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vadCfg.Enabled = false
	s.vadMachine.Disable()
}

// ConfigureDtw sets the Sakoe-Chiba window ratio, in [0,1] (§8 B3).
func (s *Session) ConfigureDtw(windowRatio float32) error {
	if windowRatio < 0 || windowRatio > 1 {
		return status.InvalidParams.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dtwWindowRatio = windowRatio
	return nil
}

// FinalizeSessionAnalysis implements §4.7.
func (s *Session) FinalizeSessionAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return status.AlreadyFinalized.Err()
	}

	// Drain any pending samples to produce up to one more, zero-padded
	// frame (§4.7 step 1).
	if s.ringBuf.Len() > 0 {
		frame := make([]float32, frameBufSize)
		s.ringBuf.DrainPadded(frame)
		coeffs := make([]float64, mfcc.NumCoefficients)
		if err := s.extractor.Extract(frame, coeffs); err == nil {
			f32frame := make(dtw.Frame, mfcc.NumCoefficients)
			for i, c := range coeffs {
				f32frame[i] = float32(c)
			}
			s.sessionFeatures = append(s.sessionFeatures, f32frame)
			s.framesObserved = len(s.sessionFeatures)
		}
	}

	if len(s.sessionFeatures) < s.aggCfg.MinFramesRequired {
		return status.InsufficientData.Err()
	}

	preSimilarity := s.lastSimilarity
	postSimilarity := float32(0)
	if s.masterFeatures != nil {
		postSimilarity = s.computePostFinalizeSimilarity()
	}

	threshold := s.finalizeCfg.FallbackThreshold
	if preSimilarity < threshold && postSimilarity > threshold {
		s.finalizeFallbackUsed = true
		s.similarityAtFinalize = postSimilarity
	} else {
		s.finalizeFallbackUsed = false
		s.similarityAtFinalize = maxFloat32(preSimilarity, postSimilarity)
	}
	if s.similarityAtFinalize > s.peak {
		s.peak = s.similarityAtFinalize
	}

	s.finalized = true
	s.state = StateFinalized
	s.segmentDurationMs = s.loudnessTracker.SampleCount() * 1000 / int64(s.sampleRate)
	s.logger.Info("session finalized",
		"similarity", s.similarityAtFinalize,
		"fallback_used", s.finalizeFallbackUsed,
		"segment_duration_ms", s.segmentDurationMs)
	return nil
}

// computePostFinalizeSimilarity runs one hard-capped full DTW pass and one
// hard-capped subsequence pass (§4.7 step 2-3), combining them with the
// aggregator's dtw/subsequence weights renormalized over just those two
// components (offset/mean are not recomputed at finalize).
func (s *Session) computePostFinalizeSimilarity() float32 {
	master := s.masterFrames()
	m, n := len(s.sessionFeatures), len(master)
	half := 4 * minInt(m, n)

	fullCost := dtw.FullBand(s.sessionFeatures, master, half)
	fullSim := dtw.Similarity(fullCost)

	var subSim float32
	haveSubsequence := m <= n
	if haveSubsequence {
		subCost := dtw.SubsequenceBand(s.sessionFeatures, master, half)
		subSim = dtw.Similarity(subCost)
	}

	wDTW := s.aggCfg.Weights.DTW
	wSub := s.aggCfg.Weights.Subsequence
	if !haveSubsequence {
		wSub = 0
	}
	total := wDTW + wSub
	if total <= 0 {
		return fullSim
	}
	return (wDTW*fullSim + wSub*subSim) / total
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// GetEnhancedAnalysisSummary returns the lazily-enabled pitch/harmonic/
// cadence view (§4.10). Querying it auto-enables analyzers on first call.
func (s *Session) GetEnhancedAnalysisSummary() EnhancedSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enhancedEnabled {
		s.enhancedEnabled = true
		s.enhancedUpdatedAt = s.clock.Now()
	}

	staleness := s.clock.Now().Sub(s.enhancedUpdatedAt).Seconds()
	valid := s.enhancedEnabled &&
		staleness <= float64(s.enhancedCfg.StalenessWindowS) &&
		len(s.sessionFeatures) >= aggregator.MinMeanFrames

	summary := EnhancedSummary{
		Valid:               valid,
		PitchConfidence:     s.pitchConfidence,
		HarmonicConfidence:  s.harmonicConfidence,
		CadenceConfidence:   s.cadenceConfidence,
		PitchGrade:          coaching.GradeFor(s.pitchConfidence),
		HarmonicGrade:       coaching.GradeFor(s.harmonicConfidence),
		CadenceGrade:        coaching.GradeFor(s.cadenceConfidence),
		SimilarityAtFinalize: s.similarityAtFinalize,
		NormalizationScalar: s.loudnessTracker.NormalizationScalar(),
		LoudnessDeviation:   s.loudnessTracker.LoudnessDeviation(),
		Finalized:           s.finalized,
		SegmentDurationMs:   s.segmentDurationMs,
	}
	return summary
}

// SetEnhancedConfidences is a test hook for direct injection of the three
// opaque analyzer confidences (§6 "Test hooks").
func (s *Session) SetEnhancedConfidences(pitch, harmonic, cadence float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitchConfidence = pitch
	s.harmonicConfidence = harmonic
	s.cadenceConfidence = cadence
	s.enhancedUpdatedAt = s.clock.Now()
	s.enhancedEnabled = true
}

// OverrideLastSimilarity is a test hook for direct override of the
// pre-finalize last-similarity value used by the fallback rule.
func (s *Session) OverrideLastSimilarity(v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSimilarity = v
}

// InjectMasterFeatures is a test hook for direct injection of master
// features, bypassing the filesystem-backed store.
func (s *Session) InjectMasterFeatures(frames [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flat := make([]float32, 0, len(frames)*mfcc.NumCoefficients)
	for _, f := range frames {
		flat = append(flat, f...)
	}
	s.masterFeatures = &masterstore.FeatureMatrix{
		Frames:       len(frames),
		Coefficients: mfcc.NumCoefficients,
		Data:         flat,
	}
	s.masterCallID = "<injected>"
	s.masterStore = nil
}

// SetFallbackThreshold is a test hook overriding the finalize fallback
// threshold.
func (s *Session) SetFallbackThreshold(v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCfg.FallbackThreshold = v
}

// GetCoachingFeedback derives suggestions from the current enhanced
// summary (§4.9). Auto-enables the enhanced view as a side effect, same as
// GetEnhancedAnalysisSummary.
func (s *Session) GetCoachingFeedback() coaching.Feedback {
	summary := s.GetEnhancedAnalysisSummary()
	return coaching.Derive(summary.PitchGrade, summary.HarmonicGrade, summary.CadenceGrade, summary.LoudnessDeviation)
}

// ExportCoachingFeedbackToJSON renders the suggestion list as
// {"suggestions": [...]}.
func (s *Session) ExportCoachingFeedbackToJSON() (string, error) {
	fb := s.GetCoachingFeedback()
	data, err := json.Marshal(fb)
	if err != nil {
		return "", status.ProcessingError.Err()
	}
	return string(data), nil
}

// GetWaveformOverlayData builds decimated peak envelopes for UI overlay
// (§4.11).
func (s *Session) GetWaveformOverlayData(cfg OverlayConfig) (overlay.Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recording) == 0 {
		return overlay.Overlay{}, status.InsufficientData.Err()
	}

	var masterEnergies []float32
	if s.masterFeatures != nil {
		masterEnergies = make([]float32, s.masterFeatures.Frames)
		for i := 0; i < s.masterFeatures.Frames; i++ {
			frame := s.masterFeatures.Frame(i)
			var e float32
			for _, c := range frame {
				e += c * c
			}
			masterEnergies[i] = e
		}
	}

	oCfg := overlay.Config{
		MaxPoints:              cfg.MaxPoints,
		UserDecimationOverride: cfg.UserDecimationOverride,
		EnergyMap:              overlay.EnergyMap(cfg.EnergyMap),
		PreferEnergyApprox:     cfg.PreferEnergyApprox,
	}
	result := overlay.Build(oCfg, s.recording, nil, masterEnergies)
	if !result.Valid {
		return overlay.Overlay{}, status.InsufficientData.Err()
	}
	return result, nil
}

// ExportRecordingWAV encodes the session's recorded raw samples as 16-bit
// PCM mono WAV (§12).
func (s *Session) ExportRecordingWAV() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recording) == 0 {
		return nil, status.InsufficientData.Err()
	}
	data, err := wavexport.ExportRecordingBytes(s.recording, s.sampleRate)
	if err != nil {
		return nil, status.ProcessingError.Err()
	}
	return data, nil
}

// ResetSession clears features/loudness/readiness and returns to READY,
// keeping sample_rate and master_call_id (§4.12).
func (s *Session) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionFeatures = nil
	s.pendingFrames = nil
	s.ringBuf.Clear()
	s.vadMachine.Reset()
	s.recording = nil
	s.loudnessTracker.Reset()

	s.framesObserved = 0
	s.lastSimilarity = 0
	s.peak = 0
	s.similarityAtFinalize = 0

	s.finalized = false
	s.finalizeFallbackUsed = false
	s.segmentDurationMs = 0

	s.enhancedEnabled = false
	s.pitchConfidence = 0
	s.harmonicConfidence = 0
	s.cadenceConfidence = 0

	s.state = StateReady
	s.lastActivityTime = s.clock.Now()
}

// IsActive reports whether the session has processed audio since it was
// created or last reset and is not yet finalized.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the session's identifier.
func (s *Session) ID() SessionId { return s.id }
