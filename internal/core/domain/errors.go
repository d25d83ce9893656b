package domain

import "errors"

// Error kinds shared across layers. The web adapter maps these to HTTP
// status codes; everything else wraps them with context.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrPortBusy          = errors.New("port busy")
	ErrPortUnreachable   = errors.New("port unreachable")
	ErrSpawnFailed       = errors.New("spawn failed")
	ErrPatternInvalid    = errors.New("invalid pattern")
	ErrSessionNotFound   = errors.New("session not found")
	ErrCaptureNotFound   = errors.New("capture not found")
	ErrDeviceUnreachable = errors.New("device unreachable")
)
