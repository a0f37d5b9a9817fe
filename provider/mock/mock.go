// Package mock provides a deterministic Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// Call records one Invoke.
type Call struct {
	Messages    []protocol.Message
	Model       string
	Temperature float64
}

// InvokeFunc computes a response for a call.
type InvokeFunc func(ctx context.Context, messages []protocol.Message, model string, temperature float64) (string, error)

// Provider is a configurable in-memory Provider. It also implements
// Transcriber and ImageReader; whether those are advertised depends on the
// configured capabilities.
type Provider struct {
	name         string
	fn           InvokeFunc
	capabilities []protocol.Capability
	transcript   string
	ocr          string

	mu    sync.Mutex
	calls []Call
}

// Option configures a mock Provider.
type Option func(*Provider)

// WithName sets the provider name (default "mock").
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithResponse makes every Invoke return text.
func WithResponse(text string) Option {
	return func(p *Provider) {
		p.fn = func(context.Context, []protocol.Message, string, float64) (string, error) {
			return text, nil
		}
	}
}

// WithError makes every Invoke fail with err.
func WithError(err error) Option {
	return func(p *Provider) {
		p.fn = func(context.Context, []protocol.Message, string, float64) (string, error) {
			return "", err
		}
	}
}

// WithFunc sets the function that answers Invoke.
func WithFunc(fn InvokeFunc) Option {
	return func(p *Provider) { p.fn = fn }
}

// WithCapabilities replaces the advertised capabilities (default chat only).
func WithCapabilities(c ...protocol.Capability) Option {
	return func(p *Provider) { p.capabilities = c }
}

// WithTranscript sets the text returned by Transcribe.
func WithTranscript(text string) Option {
	return func(p *Provider) { p.transcript = text }
}

// WithOCR sets the text returned by ReadImage.
func WithOCR(text string) Option {
	return func(p *Provider) { p.ocr = text }
}

// New creates a mock Provider. Without options Invoke returns "".
func New(opts ...Option) *Provider {
	p := &Provider{
		name:         "mock",
		capabilities: []protocol.Capability{protocol.Chat},
		fn: func(context.Context, []protocol.Message, string, float64) (string, error) {
			return "", nil
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Capabilities() []protocol.Capability { return p.capabilities }

func (p *Provider) Invoke(ctx context.Context, messages []protocol.Message, model string, temperature float64) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{
		Messages:    append([]protocol.Message(nil), messages...),
		Model:       model,
		Temperature: temperature,
	})
	p.mu.Unlock()

	return p.fn(ctx, messages, model, temperature)
}

func (p *Provider) Transcribe(ctx context.Context, _ []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.transcript, nil
}

func (p *Provider) ReadImage(ctx context.Context, _ []byte, _, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.ocr, nil
}

// Calls returns a copy of the recorded Invoke calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}
