// Package vad implements the per-session voice-activity-gated framing
// state machine (spec §4.3): SILENCE, CANDIDATE, ACTIVE and TRAILING,
// driven by per-frame energy and wall-clock frame duration. Structured the
// way the teacher's audio pipeline tracks small per-chunk state machines
// (see internal/audio/capture.go's overflow bookkeeping), but with no
// failure mode of its own — VAD cannot fail on valid inputs.
package vad

// State is one of the four voice-activity states.
type State int

const (
	Silence State = iota
	Candidate
	Active
	Trailing
)

func (s State) String() string {
	switch s {
	case Silence:
		return "SILENCE"
	case Candidate:
		return "CANDIDATE"
	case Active:
		return "ACTIVE"
	case Trailing:
		return "TRAILING"
	default:
		return "UNKNOWN"
	}
}

// Config mirrors the VAD configuration block in §6.
type Config struct {
	EnergyThreshold   float32
	WindowDurationS   float32
	MinSoundDurationS float32
	PreBufferS        float32
	PostBufferS       float32
	Enabled           bool
}

// Decision reports whether a just-processed frame (and any retroactively
// flagged pre-buffer frames) should be retained downstream.
type Decision struct {
	// RetainCurrent is true when the current frame should be appended to
	// the session feature matrix.
	RetainCurrent bool
	// RetroactiveCount is the number of previously-buffered, not-yet-
	// retained frames that should now be flagged active (the pre-buffer
	// window, only non-zero on the SILENCE→CANDIDATE transition).
	RetroactiveCount int
}

// Vad is the per-session state machine. It holds only scalar bookkeeping;
// callers (the session) own the actual frame buffer that pre-buffer frames
// are retroactively flagged within.
type Vad struct {
	cfg   Config
	state State

	activeDurationS  float32 // cumulative duration since entering CANDIDATE
	trailingS        float32 // cumulative sub-threshold duration since entering TRAILING
	pendingFrames    int     // frames buffered since SILENCE, not yet retained
}

// New creates a Vad in the SILENCE state.
func New(cfg Config) *Vad {
	return &Vad{cfg: cfg, state: Silence}
}

// State returns the current state.
func (v *Vad) State() State { return v.state }

// Enable and Disable toggle cfg.Enabled without resetting the state
// machine (§4.3 "disable_vad / enable_vad").
func (v *Vad) Enable()  { v.cfg.Enabled = true }
func (v *Vad) Disable() { v.cfg.Enabled = false }

// Reset clears the state machine to SILENCE (§4.3 "Cancellation").
func (v *Vad) Reset() {
	v.state = Silence
	v.activeDurationS = 0
	v.trailingS = 0
	v.pendingFrames = 0
}

// ProcessFrame advances the state machine by one frame of the given
// energy (sum of squared samples) and returns whether it — and any
// retroactive pre-buffer frames — should be retained.
func (v *Vad) ProcessFrame(energy float32) Decision {
	if !v.cfg.Enabled {
		return Decision{RetainCurrent: true}
	}

	aboveThreshold := energy > v.cfg.EnergyThreshold
	dt := v.cfg.WindowDurationS

	switch v.state {
	case Silence:
		if aboveThreshold {
			v.state = Candidate
			v.activeDurationS = dt
			preBufferFrames := 0
			if dt > 0 {
				preBufferFrames = int(v.cfg.PreBufferS / dt)
			}
			if preBufferFrames > v.pendingFrames {
				preBufferFrames = v.pendingFrames
			}
			v.pendingFrames = 0
			return Decision{RetainCurrent: true, RetroactiveCount: preBufferFrames}
		}
		v.pendingFrames++
		return Decision{RetainCurrent: false}

	case Candidate:
		if aboveThreshold {
			v.activeDurationS += dt
			if v.activeDurationS >= v.cfg.MinSoundDurationS {
				v.state = Active
			}
			return Decision{RetainCurrent: true}
		}
		// Dropped back below threshold before qualifying as sustained
		// sound; treat as renewed silence.
		v.state = Silence
		v.activeDurationS = 0
		v.pendingFrames = 1
		return Decision{RetainCurrent: false}

	case Active:
		if aboveThreshold {
			return Decision{RetainCurrent: true}
		}
		v.state = Trailing
		v.trailingS = dt
		return Decision{RetainCurrent: true}

	case Trailing:
		if aboveThreshold {
			v.state = Active
			v.trailingS = 0
			return Decision{RetainCurrent: true}
		}
		// Once a full post-buffer of quiet frames has been emitted, the
		// next quiet frame is silence.
		if v.trailingS >= v.cfg.PostBufferS {
			v.state = Silence
			v.activeDurationS = 0
			v.trailingS = 0
			v.pendingFrames = 0
			return Decision{RetainCurrent: false}
		}
		v.trailingS += dt
		return Decision{RetainCurrent: true}
	}
	return Decision{}
}
