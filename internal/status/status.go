// Package status defines the stable wire-level result codes shared by the
// engine's public API and its internal components (session, masterstore,
// dtw, ...). It lives under internal/ so that leaf packages can return a
// Status-backed error without importing the root package and creating an
// import cycle; the root package re-exports these as its public Status
// type and constants.
package status

// Status is a stable, frozen result code. Never renumber existing values.
type Status int32

const (
	OK                Status = 0
	InvalidParams     Status = -1
	SessionNotFound   Status = -2
	FileNotFound      Status = -3
	ProcessingError   Status = -4
	InsufficientData  Status = -5
	ResourceExhausted Status = -6
	InitFailed        Status = -7
	AlreadyFinalized  Status = -8
	InvalidFormat     Status = -9
)

// String returns a short, log-friendly name for the status.
func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case InvalidParams:
		return "INVALID_PARAMS"
	case SessionNotFound:
		return "SESSION_NOT_FOUND"
	case FileNotFound:
		return "FILE_NOT_FOUND"
	case ProcessingError:
		return "PROCESSING_ERROR"
	case InsufficientData:
		return "INSUFFICIENT_DATA"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case InitFailed:
		return "INIT_FAILED"
	case AlreadyFinalized:
		return "ALREADY_FINALIZED"
	case InvalidFormat:
		return "INVALID_FORMAT"
	default:
		return "UNKNOWN_STATUS"
	}
}

// Err adapts a Status to the error interface; OK maps to a nil error.
func (s Status) Err() error {
	if s == OK {
		return nil
	}
	return statusError(s)
}

type statusError Status

func (e statusError) Error() string {
	return Status(e).String()
}

// FromError recovers the Status a previous Err() call wrapped, if any.
func FromError(err error) (Status, bool) {
	se, ok := err.(statusError)
	if !ok {
		return OK, false
	}
	return Status(se), true
}
