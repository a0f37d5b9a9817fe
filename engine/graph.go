package engine

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/guardrail"
	"github.com/tailored-agentic-units/concierge/handlers"
	"github.com/tailored-agentic-units/concierge/intent"
	"github.com/tailored-agentic-units/concierge/orchestrate/state"
	"github.com/tailored-agentic-units/concierge/synth"
)

// Stage names, in execution order.
const (
	StageStart      = "start"
	StageClassify   = "classify"
	StageDispatch   = "dispatch"
	StageSynthesize = "synthesize"
	StageGuardrail  = "guardrail"
	StageDone       = "done"
)

func (e *Engine) buildGraph() (*state.Graph[RequestState], error) {
	g := state.NewGraphWithObserver[RequestState](e.cfg.Graph, e.observer)

	stages := []struct {
		name string
		fn   state.NodeFunc[RequestState]
	}{
		{StageStart, e.start},
		{StageClassify, e.classify},
		{StageDispatch, e.dispatch},
		{StageSynthesize, e.synthesize},
		{StageGuardrail, e.review},
		{StageDone, e.done},
	}

	for _, s := range stages {
		if err := g.AddNode(s.name, s.fn); err != nil {
			return nil, err
		}
	}
	for i := 1; i < len(stages); i++ {
		if err := g.AddEdge(stages[i-1].name, stages[i].name, nil); err != nil {
			return nil, err
		}
	}
	if err := g.SetEntryPoint(StageStart); err != nil {
		return nil, err
	}
	if err := g.SetExitPoint(StageDone); err != nil {
		return nil, err
	}

	return g, g.Validate()
}

func (e *Engine) start(ctx context.Context, s RequestState) (RequestState, error) {
	e.memory.Append(ctx, s.SessionID, protocol.RoleUser, s.UserText)
	s.ContextSummary = e.memory.Context(ctx, s.SessionID)
	s.incoming = e.notifyIncoming(s.SessionID, s.UserText)
	return s, nil
}

func (e *Engine) classify(ctx context.Context, s RequestState) (RequestState, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Classify.Std())
	defer cancel()

	c := intent.NewClassifier(s.Model.client, s.Model.Model,
		intent.WithDefault(e.defaultIntent),
		intent.WithObserver(e.observer),
	)
	i, err := c.Classify(ctx, s.ContextSummary, s.UserText)
	if err != nil {
		return s, fmt.Errorf("classify: %w", err)
	}

	s.Intent = i
	return s, nil
}

func (e *Engine) dispatch(ctx context.Context, s RequestState) (RequestState, error) {
	if s.Intent == intent.EscalateToHuman {
		e.joinConversation(ctx, &s)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Dispatch.Std())
	defer cancel()

	res, err := e.registry.Dispatch(ctx, s.Intent, handlers.Input{
		SessionID:      s.SessionID,
		ConversationID: s.ConversationID,
		UserText:       s.UserText,
		ContextSummary: s.ContextSummary,
	})
	if err != nil {
		return s, fmt.Errorf("dispatch: %w", err)
	}

	s.Handler = res.Handler
	s.RawOutput = res.RawText
	s.HandlerStatus = res.Status
	return s, nil
}

func (e *Engine) synthesize(ctx context.Context, s RequestState) (RequestState, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Synthesize.Std())
	defer cancel()

	model := e.cfg.Synth.Model
	if model == "" {
		model = s.Model.Model
	}

	sy := synth.New(e.synthMode, s.Model.client, model,
		synth.WithTemperature(s.Model.Temperature),
		synth.WithObserver(e.observer),
	)
	out, err := sy.Synthesize(ctx, s.RawOutput)
	if err != nil {
		return s, fmt.Errorf("synthesize: %w", err)
	}

	s.FinalOutput = out
	return s, nil
}

func (e *Engine) review(ctx context.Context, s RequestState) (RequestState, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Guardrail.Std())
	defer cancel()

	model := e.cfg.Guardrail.Model
	if model == "" {
		model = s.Model.Model
	}

	opts := []guardrail.Option{guardrail.WithObserver(e.observer)}
	if len(e.cfg.Guardrail.Verdicts) > 0 {
		opts = append(opts, guardrail.WithVerdicts(e.cfg.Guardrail.Verdicts...))
	}
	if e.recorder != nil {
		opts = append(opts, guardrail.WithRecorder(e.recorder))
	}

	g := guardrail.New(s.Model.client, model, e.cfg.Guardrail.IsEnabled(), opts...)
	text, outcome, err := g.Review(ctx, s.FinalOutput, s.GuardrailDisabled)
	if err != nil {
		return s, fmt.Errorf("guardrail: %w", err)
	}

	s.FinalOutput = text
	s.GuardrailOutcome = outcome
	return s, nil
}

func (e *Engine) done(ctx context.Context, s RequestState) (RequestState, error) {
	e.memory.Append(ctx, s.SessionID, protocol.RoleAssistant, s.FinalOutput)

	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Condense.Std())
	e.memory.RecordTurnPair(cctx, s.SessionID, s.UserText, s.FinalOutput)
	cancel()

	e.joinConversation(ctx, &s)
	return s, nil
}
