package memory

import "errors"

// Sentinel errors for store operations.
var (
	ErrUnavailable    = errors.New("memory store unavailable")
	ErrLoadFailed     = errors.New("load failed")
	ErrSaveFailed     = errors.New("save failed")
	ErrEmptySessionID = errors.New("session id is empty")
	ErrUnknownBackend = errors.New("unknown memory backend")
	ErrCorrupt        = errors.New("stored record is malformed")
)
