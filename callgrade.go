// Package callgrade is an embeddable real-time audio similarity engine
// that grades a live or buffered user recording against a previously
// analyzed reference "master call". Sessions stream MFCC feature frames,
// align them to the reference with dynamic time warping, and publish a
// bounded similarity score alongside coaching feedback and waveform
// overlay data.
//
// The Engine is the single entry point: it owns an integer-keyed registry
// of independent Sessions, each locked for the duration of every call, and
// a shared, read-only cache of reference feature matrices.
package callgrade

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/sagebrush-audio/callgrade/internal/aggregator"
	"github.com/sagebrush-audio/callgrade/internal/masterstore"
	"github.com/sagebrush-audio/callgrade/internal/wavexport"
)

// MaxSessions is the hard cap on concurrent sessions (§4.13).
const MaxSessions = 1000

// Engine owns the session registry and the shared master-feature cache.
type Engine struct {
	mu       sync.Mutex
	sessions map[SessionId]*Session
	nextID   uint32

	store  *masterstore.Store
	clock  Clock
	logger *log.Logger
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithMasterRoot points the master-feature cache at a filesystem root
// directory of ".mfc" files (§4.4).
func WithMasterRoot(root string, cacheCap int) EngineOption {
	return func(e *Engine) {
		e.store = masterstore.New(root, cacheCap)
	}
}

// WithClock overrides the engine's time source, primarily for deterministic
// tests driving a VirtualClock (§6 "Test hooks").
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger overrides the engine's structured logger. Sessions derive
// their own logger from it via .With("session_id", id) (§10).
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine (§6 create_engine) with an empty session
// registry and no master-feature root configured until WithMasterRoot is
// supplied.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		sessions: make(map[SessionId]*Session),
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = masterstore.New("", masterstore.DefaultCap)
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	return e
}

// CreateSession allocates a new session in state READY. Returns
// RESOURCE_EXHAUSTED once MaxSessions concurrent sessions are live, and
// INVALID_PARAMS for a non-positive sample rate (§8 B1, B2).
func (e *Engine) CreateSession(sampleRate int) (SessionId, error) {
	if sampleRate <= 0 {
		return InvalidSessionId, StatusInvalidParams.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.sessions) >= MaxSessions {
		return InvalidSessionId, StatusResourceExhausted.Err()
	}

	e.nextID++
	id := SessionId(e.nextID)
	sessLogger := e.logger.With("session_id", id)
	e.sessions[id] = newSession(id, sampleRate, e.clock, sessLogger)
	sessLogger.Info("session created", "sample_rate", sampleRate)
	return id, nil
}

// DestroySession removes a session from the registry, releasing its
// master-feature reference immediately (§4.13). Double destroy returns OK
// then SESSION_NOT_FOUND (§8 L3).
func (e *Engine) DestroySession(id SessionId) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[id]
	if !ok {
		return StatusSessionNotFound.Err()
	}
	delete(e.sessions, id)

	sess.mu.Lock()
	if sess.masterFeatures != nil && sess.masterStore != nil {
		sess.masterStore.Release(sess.masterCallID)
	}
	sess.mu.Unlock()
	e.logger.Info("session destroyed", "session_id", id)
	return nil
}

// lookup returns the session for id without holding the session's own
// lock (§5: "per-session access after lookup does not hold the map
// lock").
func (e *Engine) lookup(id SessionId) (*Session, error) {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return nil, StatusSessionNotFound.Err()
	}
	return sess, nil
}

// SessionCount reports the number of live sessions (diagnostic; not part
// of the formal API table but useful for exercising B2 in tests and
// demos).
func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// LoadMasterCall resolves call_id through the engine's shared feature
// store and attaches it to the session.
func (e *Engine) LoadMasterCall(id SessionId, callID string) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	return sess.LoadMasterCall(e.store, callID)
}

// UnloadMasterCall clears the session's loaded master.
func (e *Engine) UnloadMasterCall(id SessionId) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.UnloadMasterCall()
	return nil
}

// ProcessAudioChunk forwards to the session (§6).
func (e *Engine) ProcessAudioChunk(id SessionId, samples []float32) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	return sess.ProcessAudioChunk(samples)
}

// GetSimilarityScore forwards to the session (§6).
func (e *Engine) GetSimilarityScore(id SessionId) (float32, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	return sess.GetSimilarityScore()
}

// GetSimilarityScores forwards to the session (§6).
func (e *Engine) GetSimilarityScores(id SessionId) (Snapshot, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := sess.GetSimilarityScores()
	if err != nil {
		return Snapshot{}, err
	}
	return fromAggregatorSnapshot(snap), nil
}

// GetFeatureCount forwards to the session (§6).
func (e *Engine) GetFeatureCount(id SessionId) (int, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	return sess.GetFeatureCount(), nil
}

// GetRealtimeSimilarityState forwards to the session (§6).
func (e *Engine) GetRealtimeSimilarityState(id SessionId) (RealtimeState, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return RealtimeState{}, err
	}
	return sess.GetRealtimeSimilarityState(), nil
}

// ConfigureVad forwards to the session (§6).
func (e *Engine) ConfigureVad(id SessionId, cfg VadConfig) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	return sess.ConfigureVad(cfg)
}

// EnableVad forwards to the session (§6).
func (e *Engine) EnableVad(id SessionId) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.EnableVad()
	return nil
}

// DisableVad forwards to the session (§6).
func (e *Engine) DisableVad(id SessionId) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.DisableVad()
	return nil
}

// GetVadConfig forwards to the session (§6).
func (e *Engine) GetVadConfig(id SessionId) (VadConfig, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return VadConfig{}, err
	}
	return sess.GetVadConfig(), nil
}

// ConfigureDtw forwards to the session (§6).
func (e *Engine) ConfigureDtw(id SessionId, windowRatio float32) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	return sess.ConfigureDtw(windowRatio)
}

// FinalizeSessionAnalysis forwards to the session (§6).
func (e *Engine) FinalizeSessionAnalysis(id SessionId) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	return sess.FinalizeSessionAnalysis()
}

// GetEnhancedAnalysisSummary forwards to the session (§6).
func (e *Engine) GetEnhancedAnalysisSummary(id SessionId) (EnhancedSummary, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return EnhancedSummary{}, err
	}
	return sess.GetEnhancedAnalysisSummary(), nil
}

// GetCoachingFeedback forwards to the session (§6).
func (e *Engine) GetCoachingFeedback(id SessionId) ([]string, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.GetCoachingFeedback().Suggestions, nil
}

// ExportCoachingFeedbackToJSON forwards to the session (§6).
func (e *Engine) ExportCoachingFeedbackToJSON(id SessionId) (string, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return "", err
	}
	return sess.ExportCoachingFeedbackToJSON()
}

// GetWaveformOverlayData forwards to the session (§6).
func (e *Engine) GetWaveformOverlayData(id SessionId, cfg OverlayConfig) (OverlayData, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return OverlayData{}, err
	}
	result, err := sess.GetWaveformOverlayData(cfg)
	if err != nil {
		return OverlayData{}, err
	}
	return OverlayData{
		Valid:       result.Valid,
		UserPeaks:   result.User,
		MasterPeaks: result.Master,
		Decimation:  result.Decimation,
	}, nil
}

// ExportRecordingWAV renders the session's bounded raw-sample recording
// buffer as 16-bit PCM mono WAV (§12, supplementing spec.md's "Recording
// export" line item). Requires the session's recording buffer to be
// non-empty (RecordingConfig.Enabled at creation and at least one processed
// chunk).
func (e *Engine) ExportRecordingWAV(id SessionId) ([]byte, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.ExportRecordingWAV()
}

// ResetSession forwards to the session (§6).
func (e *Engine) ResetSession(id SessionId) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.ResetSession()
	return nil
}

// IsSessionActive forwards to the session (§6).
func (e *Engine) IsSessionActive(id SessionId) (bool, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	return sess.IsActive(), nil
}

// Test hooks (§6 "Test hooks"). Compiled in unconditionally here since the
// host language has no equivalent of a feature-gated test build without
// build tags; callers outside test code should not rely on these.

// InjectMasterFeatures bypasses the filesystem-backed store for tests.
func (e *Engine) InjectMasterFeatures(id SessionId, frames [][]float32) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.InjectMasterFeatures(frames)
	return nil
}

// OverrideLastSimilarity directly sets the pre-finalize last-similarity
// value used by the fallback rule.
func (e *Engine) OverrideLastSimilarity(id SessionId, v float32) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.OverrideLastSimilarity(v)
	return nil
}

// SetEnhancedConfidences directly injects the three opaque analyzer
// confidences.
func (e *Engine) SetEnhancedConfidences(id SessionId, pitch, harmonic, cadence float32) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.SetEnhancedConfidences(pitch, harmonic, cadence)
	return nil
}

// SetFallbackThreshold overrides a session's finalize-fallback threshold.
func (e *Engine) SetFallbackThreshold(id SessionId, v float32) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.SetFallbackThreshold(v)
	return nil
}

// Snapshot is the engine-facing similarity component snapshot (§4.6).
type Snapshot struct {
	Overall     float32
	Offset      float32
	DTW         float32
	Mean        float32
	Subsequence float32
	Peak        float32
	IsReliable  bool
	IsMatch     bool
}

func fromAggregatorSnapshot(s aggregator.Snapshot) Snapshot {
	return Snapshot{
		Overall:     s.Overall,
		Offset:      s.Offset,
		DTW:         s.DTW,
		Mean:        s.Mean,
		Subsequence: s.Subsequence,
		Peak:        s.Peak,
		IsReliable:  s.IsReliable,
		IsMatch:     s.IsMatch,
	}
}

// OverlayData is the engine-facing waveform overlay result (§4.11, §6
// get_waveform_overlay_data).
type OverlayData struct {
	Valid       bool
	UserPeaks   []float32
	MasterPeaks []float32
	Decimation  int
}
