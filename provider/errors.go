package provider

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

var (
	// ErrUnsupportedProvider indicates a provider name with no implementation
	// or no registration. It is a configuration error, never transient.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrUnavailable indicates a transient failure reaching the model.
	ErrUnavailable       = errors.New("provider unavailable")
	ErrEmptyResponse     = errors.New("empty model response")
	ErrEmptyProviderName = errors.New("provider name is empty")
	ErrProviderExists    = errors.New("provider already registered")
	ErrMissingAPIKey     = errors.New("api key is required")
)

// UnsupportedCapabilityError reports a request for a feature the provider
// does not offer, such as audio transcription on a chat-only backend.
type UnsupportedCapabilityError struct {
	Provider   string
	Capability protocol.Capability
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Capability)
}
