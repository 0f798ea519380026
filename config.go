package callgrade

// VadConfig controls the voice-activity gate (§4.3). Defaults match
// spec.md §6 exactly.
type VadConfig struct {
	EnergyThreshold   float32 // default 0.01
	WindowDurationS   float32 // default 0.025
	MinSoundDurationS float32 // default 0.1
	PreBufferS        float32 // default 0.1
	PostBufferS       float32 // default 0.2
	Enabled           bool    // default true
}

// DefaultVadConfig returns the spec-mandated defaults.
func DefaultVadConfig() VadConfig {
	return VadConfig{
		EnergyThreshold:   0.01,
		WindowDurationS:   0.025,
		MinSoundDurationS: 0.1,
		PreBufferS:        0.1,
		PostBufferS:       0.2,
		Enabled:           true,
	}
}

// Valid reports whether the configuration's numeric fields are sane enough
// to run the VAD state machine (non-negative threshold and durations, with
// a strictly positive window duration).
func (c VadConfig) Valid() bool {
	return c.EnergyThreshold >= 0 &&
		c.WindowDurationS > 0 &&
		c.MinSoundDurationS >= 0 &&
		c.PreBufferS >= 0 &&
		c.PostBufferS >= 0
}

// DtwConfig controls the banded DTW matcher (§4.5).
type DtwConfig struct {
	WindowRatio float32 // default 0.1, must be in [0,1]
	EnableSIMD  bool    // advisory only; default true
}

// DefaultDtwConfig returns the spec-mandated defaults.
func DefaultDtwConfig() DtwConfig {
	return DtwConfig{WindowRatio: 0.1, EnableSIMD: true}
}

// Valid reports whether WindowRatio is within the legal [0,1] range (§8 B3).
func (c DtwConfig) Valid() bool {
	return c.WindowRatio >= 0 && c.WindowRatio <= 1
}

// AggregatorWeights are the per-component weights of the similarity
// aggregate (§4.6). They are renormalized if they do not sum to 1.0.
type AggregatorWeights struct {
	Offset      float32
	DTW         float32
	Mean        float32
	Subsequence float32
}

// DefaultAggregatorWeights returns the spec table's default weights.
func DefaultAggregatorWeights() AggregatorWeights {
	return AggregatorWeights{Offset: 0.15, DTW: 0.50, Mean: 0.15, Subsequence: 0.20}
}

// AggregatorConfig controls the similarity aggregator (§4.6).
type AggregatorConfig struct {
	Weights           AggregatorWeights
	MinFramesRequired int     // default 32
	MinScoreForMatch  float32 // default 0.005
	ConfidenceThresh  float32 // default 0.70
}

// DefaultAggregatorConfig returns the spec-mandated defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Weights:           DefaultAggregatorWeights(),
		MinFramesRequired: 32,
		MinScoreForMatch:  0.005,
		ConfidenceThresh:  0.70,
	}
}

// EnergyMap selects the curve used to rescale master energies to [0,1]
// when the waveform overlay falls back to per-frame energy approximation.
type EnergyMap int

const (
	EnergyMapLinear EnergyMap = iota
	EnergyMapSqrt
)

// OverlayConfig controls waveform overlay decimation (§4.11).
type OverlayConfig struct {
	MaxPoints               int
	UserDecimationOverride  int // 0 means "not set"
	EnergyMap               EnergyMap
	PreferEnergyApprox      bool
}

// DefaultOverlayConfig returns the spec-mandated defaults.
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{MaxPoints: 512, EnergyMap: EnergyMapLinear}
}

// FinalizeConfig controls the finalize/fallback rule (§4.7).
type FinalizeConfig struct {
	FallbackThreshold float32 // default 0.40
}

// DefaultFinalizeConfig returns the spec-mandated default.
func DefaultFinalizeConfig() FinalizeConfig {
	return FinalizeConfig{FallbackThreshold: 0.40}
}

// RecordingConfig bounds the optional raw-audio recording buffer (§3
// "recording (optional bounded buffer of raw samples, capped by
// configured duration)").
type RecordingConfig struct {
	Enabled    bool
	MaxDurationS float32 // default 30s
}

// DefaultRecordingConfig returns sensible defaults: recording enabled with
// a 30-second cap, long enough to audition a single hunting-call take.
func DefaultRecordingConfig() RecordingConfig {
	return RecordingConfig{Enabled: true, MaxDurationS: 30}
}

// EnhancedSummaryConfig controls the lazily-enabled enhanced analysis
// view (§4.10).
type EnhancedSummaryConfig struct {
	StalenessWindowS float32 // default 2.0
}

// DefaultEnhancedSummaryConfig returns the spec-mandated default.
func DefaultEnhancedSummaryConfig() EnhancedSummaryConfig {
	return EnhancedSummaryConfig{StalenessWindowS: 2.0}
}
