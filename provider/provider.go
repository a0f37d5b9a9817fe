// Package provider adapts language model backends to a single blocking call,
// invoke(messages, model, temperature) -> text, with optional audio and
// vision capabilities exposed through narrower interfaces.
package provider

import (
	"context"
	"slices"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// Provider is a configured language model backend. Implementations are
// shared across requests and must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
	// Invoke sends messages to model and returns the completion text.
	// Transient failures wrap ErrUnavailable.
	Invoke(ctx context.Context, messages []protocol.Message, model string, temperature float64) (string, error)
	// Capabilities lists the features this provider supports.
	Capabilities() []protocol.Capability
}

// Transcriber is implemented by providers that convert speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ImageReader is implemented by providers that extract text from images.
type ImageReader interface {
	ReadImage(ctx context.Context, image []byte, mimeType, prompt, model string) (string, error)
}

// Supports reports whether p declares capability c.
func Supports(p Provider, c protocol.Capability) bool {
	return slices.Contains(p.Capabilities(), c)
}

// AsTranscriber returns p as a Transcriber, or an UnsupportedCapabilityError
// when p does not support audio.
func AsTranscriber(p Provider) (Transcriber, error) {
	t, ok := p.(Transcriber)
	if !ok || !Supports(p, protocol.Audio) {
		return nil, &UnsupportedCapabilityError{Provider: p.Name(), Capability: protocol.Audio}
	}
	return t, nil
}

// AsImageReader returns p as an ImageReader, or an UnsupportedCapabilityError
// when p does not support vision.
func AsImageReader(p Provider) (ImageReader, error) {
	r, ok := p.(ImageReader)
	if !ok || !Supports(p, protocol.Vision) {
		return nil, &UnsupportedCapabilityError{Provider: p.Name(), Capability: protocol.Vision}
	}
	return r, nil
}
