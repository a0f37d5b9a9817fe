// Package guardrail reviews the final reply with a model call before it is
// sent, accepting, replacing or passing through the text depending on the
// reviewer's verdict.
package guardrail

import (
	"context"
	"errors"
	"strings"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/observability"
	"github.com/tailored-agentic-units/concierge/provider"
)

// Outcome is the result of a review.
type Outcome string

const (
	Approved Outcome = "approved"
	Rejected Outcome = "rejected"
	Fallback Outcome = "fallback"
	Skipped  Outcome = "skipped"
	// Error marks a review that could not run; the request fails instead.
	Error Outcome = "error"
)

const EventReviewed observability.EventType = "guardrail.reviewed"

// Verdict is one pair of reviewer prefixes.
type Verdict struct {
	Approved string `json:"approved" yaml:"approved"`
	Rejected string `json:"rejected" yaml:"rejected"`
}

// DefaultVerdicts returns the English prefixes followed by the Spanish ones.
func DefaultVerdicts() []Verdict {
	return []Verdict{
		{Approved: "APPROVED:", Rejected: "REJECTED:"},
		{Approved: "APROBADO:", Rejected: "RECHAZADO:"},
	}
}

// Prompt is the default review instruction.
const Prompt = `Eres un guardrail de seguridad para un bot de ecommerce.
Revisa la respuesta final antes de enviarla al usuario. Verifica que:
- No contenga lenguaje ofensivo, discriminatorio o inapropiado.
- No revele información sensible; si hay datos personales, enmascáralos con ****.
- No prometa productos no disponibles ni invente información.
- Sea informativa y relevante para la consulta del usuario.

Si la respuesta pasa todas las verificaciones, responde con: "APROBADO: [respuesta original]"
Si falla alguna verificación, responde con: "RECHAZADO: [respuesta corregida o alternativa]"`

// Recorder receives every review outcome.
type Recorder interface {
	ObserveGuardrail(outcome string)
}

// Guardrail reviews replies. A review never blocks a reply: output that
// matches no configured prefix passes the original text through.
type Guardrail struct {
	provider provider.Provider
	model    string
	enabled  bool
	prompt   string
	verdicts []Verdict
	observer observability.Observer
	recorder Recorder
}

// Option configures a Guardrail.
type Option func(*Guardrail)

// WithVerdicts replaces the accepted prefix pairs.
func WithVerdicts(v ...Verdict) Option {
	return func(g *Guardrail) { g.verdicts = v }
}

// WithPrompt replaces the review instruction.
func WithPrompt(prompt string) Option {
	return func(g *Guardrail) { g.prompt = prompt }
}

// WithObserver sets the observer for review events.
func WithObserver(o observability.Observer) Option {
	return func(g *Guardrail) { g.observer = o }
}

// WithRecorder sets the metrics sink for outcomes.
func WithRecorder(r Recorder) Option {
	return func(g *Guardrail) { g.recorder = r }
}

// New creates a Guardrail. When enabled is false every review is skipped.
func New(p provider.Provider, model string, enabled bool, opts ...Option) *Guardrail {
	g := &Guardrail{
		provider: p,
		model:    model,
		enabled:  enabled,
		prompt:   Prompt,
		verdicts: DefaultVerdicts(),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether reviews run.
func (g *Guardrail) Enabled() bool { return g.enabled }

// Review returns the text to send and how it was decided.
//
// Prefix matching is exact and case-sensitive after trimming whitespace.
// A deadline, cancellation or unavailable provider is returned as an error
// with outcome Error; other model failures resolve to Fallback.
func (g *Guardrail) Review(ctx context.Context, text string, disabled bool) (string, Outcome, error) {
	if !g.enabled || disabled {
		g.record(ctx, Skipped, nil)
		return text, Skipped, nil
	}

	out, err := g.provider.Invoke(ctx, protocol.InitMessages(g.prompt, text), g.model, 0)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, provider.ErrUnavailable) {
			g.record(ctx, Error, map[string]any{"error": err.Error()})
			return text, Error, err
		}
		g.record(ctx, Fallback, map[string]any{"error": err.Error()})
		return text, Fallback, nil
	}

	reviewed, outcome := g.parse(out)
	if outcome == Fallback {
		g.record(ctx, Fallback, map[string]any{"output": truncate(out, 200)})
		return text, Fallback, nil
	}

	g.record(ctx, outcome, nil)
	return reviewed, outcome, nil
}

// parse matches the reviewer output against the configured prefixes.
func (g *Guardrail) parse(out string) (string, Outcome) {
	out = strings.TrimSpace(out)

	for _, v := range g.verdicts {
		for _, candidate := range []struct {
			prefix  string
			outcome Outcome
		}{{v.Approved, Approved}, {v.Rejected, Rejected}} {
			if candidate.prefix == "" {
				continue
			}
			if rest, ok := strings.CutPrefix(out, candidate.prefix); ok {
				rest = strings.TrimSpace(rest)
				if rest == "" {
					return "", Fallback
				}
				return rest, candidate.outcome
			}
		}
	}
	return "", Fallback
}

func (g *Guardrail) record(ctx context.Context, outcome Outcome, data map[string]any) {
	if g.recorder != nil {
		g.recorder.ObserveGuardrail(string(outcome))
	}

	level := observability.LevelVerbose
	if outcome == Fallback || outcome == Error {
		level = observability.LevelWarning
	}
	if data == nil {
		data = map[string]any{}
	}
	data["outcome"] = string(outcome)
	g.observer.OnEvent(ctx, observability.NewEvent(EventReviewed, level, "guardrail.Guardrail", data))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
