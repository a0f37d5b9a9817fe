// Package engine answers inbound conversational messages. Each request runs
// through a strict graph of stages over a RequestState value:
//
//	start → classify → dispatch → synthesize → guardrail → done
//
// Any stage failure ends the request in the error terminal, which still
// replies with a fixed apology and records the exchange.
//
// The engine initializes from configuration via New. Functional options
// supply or replace subsystems before the configured defaults are built.
//
//	e, err := engine.New(&cfg)
//	reply, err := e.Handle(ctx, engine.Request{SessionID: "s1", Text: "Hola"})
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/handlers"
	"github.com/tailored-agentic-units/concierge/intent"
	"github.com/tailored-agentic-units/concierge/media"
	"github.com/tailored-agentic-units/concierge/memory"
	"github.com/tailored-agentic-units/concierge/metrics"
	"github.com/tailored-agentic-units/concierge/notify"
	"github.com/tailored-agentic-units/concierge/observability"
	"github.com/tailored-agentic-units/concierge/orchestrate/state"
	"github.com/tailored-agentic-units/concierge/provider"
	"github.com/tailored-agentic-units/concierge/session"
	"github.com/tailored-agentic-units/concierge/synth"
)

// Notifier forwards conversation messages to an external sink and returns
// the conversation id the sink uses.
type Notifier interface {
	Notify(ctx context.Context, conversationID, message string, direction notify.Direction) (string, error)
}

// Option configures an Engine before config-driven initialization.
// Anything an option supplies is not built from configuration.
type Option func(*Engine)

// WithProvider registers p under name, replacing any configured provider
// of that name.
func WithProvider(name string, p provider.Provider) Option {
	return func(e *Engine) { e.overrides[name] = p }
}

// WithStore overrides the config-created memory store. The store is still
// wrapped for degradation.
func WithStore(s memory.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithCondenser overrides the model-backed summary condenser.
func WithCondenser(c session.Condenser) Option {
	return func(e *Engine) { e.condenser = c }
}

// WithHandler answers intent i with h instead of the configured handler.
func WithHandler(i intent.Intent, h handlers.Handler) Option {
	return func(e *Engine) { e.handlerOverrides[i] = h }
}

// WithLabeler overrides the Chatwoot labeler used on escalation.
func WithLabeler(l handlers.Labeler) Option {
	return func(e *Engine) { e.labeler = l }
}

// WithNotifier overrides the notification webhook client.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRecorder enables metrics for every subsystem.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver overrides the observer named by Config.Observer.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine composes the conversation subsystems. It is safe for concurrent
// use; requests share only session memory, providers and sinks.
type Engine struct {
	cfg Config

	providers *provider.Registry
	overrides map[string]provider.Provider

	store     memory.Store
	resilient *memory.Resilient
	condenser session.Condenser
	memory    *session.Memory
	probe     *cron.Cron

	registry         *handlers.Registry
	handlerOverrides map[intent.Intent]handlers.Handler
	defaultIntent    intent.Intent
	synthMode        synth.Mode

	labeler    handlers.Labeler
	notifier   Notifier
	dispatcher *notify.Dispatcher

	recorder *metrics.Recorder
	observer observability.Observer
	graph    *state.Graph[RequestState]
}

// New creates an Engine from configuration. Configuration mistakes, such
// as an unknown synthesizer mode or a default provider that cannot be
// constructed, are returned here rather than at request time.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:              *cfg,
		overrides:        make(map[string]provider.Provider),
		handlerOverrides: make(map[intent.Intent]handlers.Handler),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.observer == nil {
		o, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		e.observer = o
	}

	mode, err := synth.ParseMode(cfg.Synth.Mode)
	if err != nil {
		return nil, err
	}
	e.synthMode = mode

	def, ok := intent.Parse(cfg.DefaultIntent)
	if !ok {
		return nil, fmt.Errorf("unknown default intent %q", cfg.DefaultIntent)
	}
	e.defaultIntent = def

	if err := e.initProviders(); err != nil {
		return nil, err
	}

	e.initSinks()

	if err := e.initMemory(); err != nil {
		return nil, err
	}

	if err := e.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to create handler registry: %w", err)
	}

	graph, err := e.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	e.graph = graph

	return e, nil
}

func (e *Engine) initProviders() error {
	reg := provider.NewRegistry()
	for name, p := range e.overrides {
		if err := reg.Add(name, p); err != nil {
			return fmt.Errorf("failed to add provider %q: %w", name, err)
		}
	}
	for name, pc := range e.cfg.Providers {
		if _, replaced := e.overrides[name]; replaced {
			continue
		}
		if err := reg.Register(name, pc); err != nil {
			return fmt.Errorf("failed to register provider %q: %w", name, err)
		}
	}
	e.providers = reg

	if _, err := reg.Get(e.cfg.Provider); err != nil {
		return fmt.Errorf("failed to create default provider: %w", err)
	}
	return nil
}

func (e *Engine) initSinks() {
	opts := []notify.Option{
		notify.WithLimit(e.cfg.Notify.MaxInFlight),
		notify.WithTaskTimeout(e.cfg.Notify.TaskTimeout.Std()),
		notify.WithObserver(e.observer),
	}
	if e.recorder != nil {
		opts = append(opts, notify.WithRecorder(e.recorder))
	}
	e.dispatcher = notify.NewDispatcher(opts...)

	n := e.cfg.Notify
	if e.labeler == nil && n.ChatwootURL != "" {
		e.labeler = notify.NewChatwoot(n.ChatwootURL, n.ChatwootToken, n.ChatwootAccountID, n.ChatwootTimeout.Std())
	}
	if e.notifier == nil && n.WebhookURL != "" {
		e.notifier = notify.NewWebhook(n.WebhookURL, n.WebhookTimeout.Std())
	}
}

func (e *Engine) initMemory() error {
	if e.store == nil {
		store, err := memory.NewStore(&e.cfg.Memory)
		if err != nil {
			return fmt.Errorf("failed to create memory store: %w", err)
		}
		e.store = store
	}

	opts := []memory.ResilientOption{memory.WithObserver(e.observer)}
	if e.recorder != nil {
		opts = append(opts, memory.WithStateHook(e.recorder.SetMemoryDegraded))
	}
	e.resilient = memory.NewResilient(e.store, opts...)

	if _, local := e.store.(*memory.LocalStore); !local {
		e.probe = cron.New()
		if _, err := memory.ScheduleProbe(e.probe, e.cfg.Memory.ProbeSchedule, e.resilient, e.cfg.Memory.ProbeTimeout.Std()); err != nil {
			return fmt.Errorf("invalid memory probe schedule: %w", err)
		}
	}

	if e.condenser == nil {
		p, err := e.providers.Get(e.cfg.Provider)
		if err != nil {
			return err
		}
		model := e.cfg.Session.CondenseModel
		if model == "" {
			model = e.cfg.Model
		}
		e.condenser = session.NewModelCondenser(e.instrument(p), model)
	}

	e.memory = session.New(e.resilient, e.condenser,
		session.WithTokenBudget(e.cfg.Session.TokenBudget),
		session.WithObserver(e.observer),
	)
	return nil
}

// Start begins background maintenance (the memory recovery probe).
func (e *Engine) Start() {
	if e.probe != nil {
		e.probe.Start()
	}
}

// Shutdown stops background work, waits for detached side effects until
// ctx is done, and closes the memory store.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error

	if e.probe != nil {
		select {
		case <-e.probe.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("memory probe: %w", ctx.Err()))
		}
	}
	if err := e.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("side effects: %w", err))
	}
	if err := e.resilient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("memory store: %w", err))
	}
	return errors.Join(errs...)
}

// Providers returns the provider registry.
func (e *Engine) Providers() *provider.Registry {
	return e.providers
}

// Degraded reports whether session memory is served from the in-process
// fallback.
func (e *Engine) Degraded() bool {
	return e.resilient.Degraded()
}

// History returns up to n of the newest turns of a session, oldest first.
func (e *Engine) History(ctx context.Context, sessionID string, n int) []HistoryEntry {
	turns := e.memory.Recent(ctx, sessionID, n)
	entries := make([]HistoryEntry, len(turns))
	for i, t := range turns {
		entries[i] = HistoryEntry{Role: string(t.Role), Content: t.Content}
	}
	return entries
}

// Summary returns the condensed summary of a session.
func (e *Engine) Summary(ctx context.Context, sessionID string) string {
	return e.memory.Summary(ctx, sessionID)
}

// Context returns the summary followed by the turns not yet condensed, as
// handed to the classifier and handlers.
func (e *Engine) Context(ctx context.Context, sessionID string) string {
	return e.memory.Context(ctx, sessionID)
}

// Handle answers one inbound message.
//
// The returned error is non-nil only for caller mistakes: a missing session
// id, empty text, or a provider override that is not configured
// (*ProviderConfigurationError). Every other failure produces a Reply.
func (e *Engine) Handle(ctx context.Context, req Request) (*Reply, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrEmptySessionID
	}

	mc, err := e.resolveModel(req)
	if err != nil {
		return nil, err
	}

	if e.recorder != nil {
		e.recorder.RequestStarted()
		defer e.recorder.RequestFinished()
	}

	ctx = observability.WithSessionID(ctx, req.SessionID)
	start := time.Now()

	e.observer.OnEvent(ctx, observability.NewEvent(EventRequestStart, observability.LevelInfo, "engine.Engine", map[string]any{
		"provider":     mc.Provider,
		"model":        mc.Model,
		"content_type": req.ContentType,
	}))

	initial := RequestState{
		SessionID:         req.SessionID,
		GuardrailDisabled: req.DisableGuardrail,
		Model:             mc,
	}

	text, err := e.preprocess(ctx, mc, req)
	if err != nil {
		if errors.Is(err, ErrEmptyText) {
			return nil, err
		}
		return e.rejectMedia(ctx, initial, req.ContentType, err), nil
	}
	initial.UserText = text

	final, err := e.graph.Execute(ctx, initial)
	if err != nil {
		return e.fail(ctx, final, err), nil
	}

	e.observer.OnEvent(ctx, observability.NewEvent(EventRequestComplete, observability.LevelInfo, "engine.Engine", map[string]any{
		"intent":    final.Intent.String(),
		"handler":   final.Handler,
		"status":    string(final.HandlerStatus),
		"guardrail": string(final.GuardrailOutcome),
		"duration":  time.Since(start).String(),
	}))
	return e.finish(ctx, final, final.FinalOutput, final.Intent.String(), ""), nil
}

func (e *Engine) resolveModel(req Request) (ModelConfig, error) {
	name := strings.ToLower(strings.TrimSpace(req.Provider))
	if name == "" {
		name = e.cfg.Provider
	}

	p, err := e.providers.Get(name)
	if err != nil {
		return ModelConfig{}, &ProviderConfigurationError{Provider: name, Err: err}
	}

	mc := ModelConfig{
		Provider:    name,
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		client:      e.instrument(p),
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		mc.Model = m
	}
	if req.Temperature != nil {
		mc.Temperature = *req.Temperature
	}
	return mc, nil
}

func (e *Engine) instrument(p provider.Provider) provider.Provider {
	if e.recorder == nil {
		return p
	}
	return metrics.Instrument(p, e.recorder)
}

func (e *Engine) preprocess(ctx context.Context, mc ModelConfig, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Media.Std())
	defer cancel()

	pp := media.New(mc.client, media.WithOCRModel(mc.Model), media.WithObserver(e.observer))
	text, err := pp.Text(ctx, media.Input{Data: req.Text, ContentType: req.ContentType, Filename: req.Filename})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// rejectMedia answers a message whose content could not be turned into
// text. Transient provider failures use the error terminal; everything
// else gets a reply explaining which content is accepted.
func (e *Engine) rejectMedia(ctx context.Context, s RequestState, contentType string, err error) *Reply {
	s.UserText = "[" + contentType + "]"
	e.memory.Append(ctx, s.SessionID, protocol.RoleUser, s.UserText)

	if kind := errorKind(err); kind != KindInternal {
		return e.fail(ctx, s, err)
	}

	e.observer.OnEvent(ctx, observability.NewEvent(EventMediaRejected, observability.LevelWarning, "engine.Engine", map[string]any{
		"content_type": contentType,
		"error":        err.Error(),
	}))

	text := media.UserMessage(err)
	e.memory.Append(ctx, s.SessionID, protocol.RoleAssistant, text)
	e.joinConversation(ctx, &s)
	return e.finish(ctx, s, text, intent.Other.String(), "")
}

// fail is the error terminal: a fixed apology tagged with the error intent.
func (e *Engine) fail(ctx context.Context, s RequestState, err error) *Reply {
	ctx = context.WithoutCancel(ctx)
	kind := errorKind(err)

	data := map[string]any{
		"kind":  kind,
		"error": err.Error(),
	}
	var execErr *state.ExecutionError
	if errors.As(err, &execErr) {
		data["node"] = execErr.NodeName
		data["path"] = execErr.Path
	}
	e.observer.OnEvent(ctx, observability.NewEvent(EventRequestFailed, observability.LevelError, "engine.Engine", data))

	e.memory.Append(ctx, s.SessionID, protocol.RoleAssistant, Apology)
	e.joinConversation(ctx, &s)
	return e.finish(ctx, s, Apology, intent.Failed.String(), kind)
}

// finish fires the outgoing notification and assembles the reply.
func (e *Engine) finish(ctx context.Context, s RequestState, text, tag, kind string) *Reply {
	if e.recorder != nil {
		e.recorder.ObserveIntent(tag)
	}

	if e.notifier != nil {
		conversationID := s.ConversationID
		e.dispatcher.Go("notify:outgoing", func(ctx context.Context) error {
			_, err := e.notifier.Notify(ctx, conversationID, text, notify.Outgoing)
			return err
		})
	}

	return &Reply{
		Provider:       s.Model.Provider,
		Model:          s.Model.Model,
		Reply:          text,
		Intent:         tag,
		ConversationID: s.ConversationID,
		RecentHistory:  e.History(ctx, s.SessionID, e.cfg.Session.RecentWindow),
		ErrorKind:      kind,
	}
}

// notifyIncoming starts the incoming notification, whose result is the
// conversation id for everything sent afterwards.
func (e *Engine) notifyIncoming(sessionID, text string) *notify.Future {
	if e.notifier == nil {
		return notify.Resolved(sessionID)
	}
	return e.dispatcher.Submit("notify:incoming", func(ctx context.Context) (string, error) {
		return e.notifier.Notify(ctx, sessionID, text, notify.Incoming)
	})
}

// joinConversation waits, bounded, for the incoming notification and sets
// s.ConversationID, falling back to the session id. It joins at most once.
func (e *Engine) joinConversation(ctx context.Context, s *RequestState) {
	if s.ConversationID != "" {
		return
	}
	if s.incoming == nil {
		s.ConversationID = s.SessionID
		return
	}

	id, err := s.incoming.Wait(ctx, e.cfg.Notify.JoinTimeout.Std())
	if err != nil || strings.TrimSpace(id) == "" {
		data := map[string]any{}
		if err != nil {
			data["error"] = err.Error()
		}
		e.observer.OnEvent(ctx, observability.NewEvent(EventConversationID, observability.LevelVerbose, "engine.Engine", data))
		id = s.SessionID
	}
	s.ConversationID = id
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, provider.ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
