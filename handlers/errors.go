package handlers

import (
	"errors"
	"fmt"
)

var (
	ErrNoDefault     = errors.New("default handler is required")
	ErrInvalidIntent = errors.New("intent has no handler slot")
	ErrNilHandler    = errors.New("handler is nil")
	ErrEmptyResult   = errors.New("remote handler returned no result")
	ErrHandlerPanic  = errors.New("handler panicked")
)

// RemoteStatusError reports a non-2xx response from a remote handler.
type RemoteStatusError struct {
	Handler    string
	StatusCode int
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("handler %s: remote returned status %d", e.Handler, e.StatusCode)
}
