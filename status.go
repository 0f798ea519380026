package callgrade

import "github.com/sagebrush-audio/callgrade/internal/status"

// Status is the stable wire-level result code returned by every fallible
// engine operation. Values are frozen; never renumber them.
type Status = status.Status

const (
	StatusOK                = status.OK
	StatusInvalidParams     = status.InvalidParams
	StatusSessionNotFound   = status.SessionNotFound
	StatusFileNotFound      = status.FileNotFound
	StatusProcessingError   = status.ProcessingError
	StatusInsufficientData  = status.InsufficientData
	StatusResourceExhausted = status.ResourceExhausted
	StatusInitFailed        = status.InitFailed
	StatusAlreadyFinalized  = status.AlreadyFinalized
	StatusInvalidFormat     = status.InvalidFormat
)
