package session

import (
	"context"
	"strings"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/provider"
)

// Condenser folds turns into an existing summary and returns the new
// summary text.
type Condenser interface {
	Condense(ctx context.Context, previous string, turns []protocol.Turn) (string, error)
}

// CondenserFunc adapts a function to the Condenser interface.
type CondenserFunc func(ctx context.Context, previous string, turns []protocol.Turn) (string, error)

func (f CondenserFunc) Condense(ctx context.Context, previous string, turns []protocol.Turn) (string, error) {
	return f(ctx, previous, turns)
}

const condensePrompt = `Resume progresivamente la conversación entre un cliente y la tienda.
Recibirás el resumen actual y nuevas líneas de conversación. Devuelve un único resumen actualizado
que incorpore la información nueva. Usa solo hechos presentes en el resumen o en las líneas; no inventes nada.
Responde únicamente con el resumen.`

// ModelCondenser condenses through a language model call at temperature 0.
type ModelCondenser struct {
	provider provider.Provider
	model    string
}

// NewModelCondenser creates a Condenser backed by p.
func NewModelCondenser(p provider.Provider, model string) *ModelCondenser {
	return &ModelCondenser{provider: p, model: model}
}

func (c *ModelCondenser) Condense(ctx context.Context, previous string, turns []protocol.Turn) (string, error) {
	var b strings.Builder
	b.WriteString("Resumen actual:\n")
	b.WriteString(previous)
	b.WriteString("\n\nNuevas líneas:\n")
	b.WriteString(protocol.RenderTurns(turns))

	out, err := c.provider.Invoke(ctx, protocol.InitMessages(condensePrompt, b.String()), c.model, 0)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
