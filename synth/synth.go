// Package synth turns a handler's raw output into the user-facing reply.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/observability"
	"github.com/tailored-agentic-units/concierge/provider"
)

// Mode selects how raw output is turned into the reply.
type Mode string

const (
	// Passthrough returns the raw output unchanged.
	Passthrough Mode = "passthrough"
	// Refine rewrites the raw output with a model call.
	Refine Mode = "refine"
)

// ParseMode validates a mode name. The empty string selects Passthrough.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Passthrough:
		return Passthrough, nil
	case Refine:
		return Refine, nil
	default:
		return "", fmt.Errorf("unknown synthesizer mode %q", s)
	}
}

// Prompt is the default refine instruction.
const Prompt = `Eres un sintetizador de respuestas para un bot de ecommerce por WhatsApp.
- Toma la respuesta cruda del agente y refínala para que sea clara, breve y amigable.
- Mantén el idioma del usuario (español por defecto).
- Si la respuesta es sobre productos, conserva los detalles relevantes.
- Si es un error, explícalo de forma útil.
- No agregues información que no esté en la respuesta cruda.`

const (
	EventRefined      observability.EventType = "synth.refined"
	EventRefineFailed observability.EventType = "synth.refine.failed"
)

// Synthesizer produces the final reply text.
type Synthesizer struct {
	mode        Mode
	provider    provider.Provider
	model       string
	temperature float64
	prompt      string
	observer    observability.Observer
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTemperature sets the refine temperature.
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = t }
}

// WithObserver sets the observer for synthesizer events.
func WithObserver(o observability.Observer) Option {
	return func(s *Synthesizer) { s.observer = o }
}

// New creates a Synthesizer. The provider is only used in Refine mode and
// may be nil for Passthrough.
func New(mode Mode, p provider.Provider, model string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		mode:     mode,
		provider: p,
		model:    model,
		prompt:   Prompt,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the configured mode.
func (s *Synthesizer) Mode() Mode { return s.mode }

// Synthesize returns the reply for raw. In Refine mode a timeout or an
// unavailable provider is returned as an error; other model failures and
// empty model output fall back to raw.
func (s *Synthesizer) Synthesize(ctx context.Context, raw string) (string, error) {
	if s.mode != Refine || s.provider == nil {
		return raw, nil
	}

	out, err := s.provider.Invoke(ctx, protocol.InitMessages(s.prompt, raw), s.model, s.temperature)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, provider.ErrUnavailable) {
			return raw, err
		}
		s.observer.OnEvent(ctx, observability.NewEvent(EventRefineFailed, observability.LevelWarning, "synth.Synthesizer", map[string]any{
			"error": err.Error(),
		}))
		return raw, nil
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return raw, nil
	}

	s.observer.OnEvent(ctx, observability.NewEvent(EventRefined, observability.LevelVerbose, "synth.Synthesizer", map[string]any{
		"raw_chars":   len(raw),
		"final_chars": len(out),
	}))
	return out, nil
}
