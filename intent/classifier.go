package intent

import (
	"context"
	"errors"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/observability"
	"github.com/tailored-agentic-units/concierge/provider"
)

// Prompt is the default classification instruction.
const Prompt = `Eres un agente clasificador de intenciones para un asistente virtual de una tienda online.

Analiza el mensaje del cliente y clasifícalo en UNA de las siguientes intenciones:
- "pedido"
- "consulta_producto"
- "saludo"
- "seguimiento"
- "entregas"
- "pagos"
- "otro"
- "humano"
- "talla"

Instrucciones:
1. Usa el historial de conversación si el mensaje es corto o ambiguo.
2. Si el mensaje contiene un correo o un número de celular, es "pedido".
3. Si dice "quiero", "me interesa", "estoy buscando" o "me gustaría" sin haber elegido un producto específico, es "consulta_producto".
4. Las preguntas genéricas sobre la tienda, catálogo o promociones son "otro".
5. Si solo saluda ("Hola", "Buenas tardes"), es "saludo".
6. Si pregunta por el estado de un pedido, es "seguimiento".
7. Las consultas sobre formas de pago son "pagos".
8. Las consultas sobre delivery, envíos, entregas o cobertura son "entregas".
9. Si el cliente está molesto, nota que la conversación está en un bucle o pide hablar con una persona, es "humano".
10. Las consultas sobre tallas o medidas son "talla".

Responde solo con la intención elegida, sin comillas ni formato JSON, sin texto adicional.`

// Classifier assigns an intent to a user message with one model call at
// temperature 0. It holds no per-request state.
type Classifier struct {
	provider provider.Provider
	model    string
	prompt   string
	fallback Intent
	observer observability.Observer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDefault sets the intent used for unrecognized model output.
func WithDefault(i Intent) Option {
	return func(c *Classifier) { c.fallback = i }
}

// WithPrompt replaces the classification instruction.
func WithPrompt(prompt string) Option {
	return func(c *Classifier) { c.prompt = prompt }
}

// WithObserver sets the observer for classification events.
func WithObserver(o observability.Observer) Option {
	return func(c *Classifier) { c.observer = o }
}

// NewClassifier creates a Classifier over p. The default intent is Other.
func NewClassifier(p provider.Provider, model string, opts ...Option) *Classifier {
	c := &Classifier{
		provider: p,
		model:    model,
		prompt:   Prompt,
		fallback: Other,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns the intent used for unrecognized output.
func (c *Classifier) Default() Intent {
	return c.fallback
}

// Classify returns the intent for userText given the session context.
//
// Unrecognized output yields the default intent without error. Deadline,
// cancellation and provider unavailability are returned alongside the
// default intent; any other model error is logged and resolves to the
// default intent.
func (c *Classifier) Classify(ctx context.Context, contextSummary, userText string) (Intent, error) {
	input := userText
	if contextSummary != "" {
		input = contextSummary + "\n\n" + userText
	}

	out, err := c.provider.Invoke(ctx, protocol.InitMessages(c.prompt, input), c.model, 0)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, provider.ErrUnavailable) {
			return c.fallback, err
		}
		c.observer.OnEvent(ctx, observability.NewEvent(EventFailed, observability.LevelWarning, "intent.Classifier", map[string]any{
			"error":   err.Error(),
			"default": c.fallback.String(),
		}))
		return c.fallback, nil
	}

	i, ok := Parse(out)
	if !ok {
		c.observer.OnEvent(ctx, observability.NewEvent(EventUnrecognized, observability.LevelInfo, "intent.Classifier", map[string]any{
			"output":  out,
			"default": c.fallback.String(),
		}))
		return c.fallback, nil
	}

	c.observer.OnEvent(ctx, observability.NewEvent(EventClassified, observability.LevelVerbose, "intent.Classifier", map[string]any{
		"intent": i.String(),
	}))
	return i, nil
}
