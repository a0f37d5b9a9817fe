package notify

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady      = errors.New("result not ready")
	ErrDropped       = errors.New("task dropped before it could start")
	ErrTaskPanic     = errors.New("task panicked")
	ErrNotConfigured = errors.New("sink not configured")
)

// StatusError reports a non-2xx answer from a side-effect sink.
type StatusError struct {
	Sink       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Sink, e.StatusCode)
}
