package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/concierge/core/config"
	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/engine"
	"github.com/tailored-agentic-units/concierge/guardrail"
	"github.com/tailored-agentic-units/concierge/handlers"
	"github.com/tailored-agentic-units/concierge/intent"
	"github.com/tailored-agentic-units/concierge/media"
	"github.com/tailored-agentic-units/concierge/memory"
	"github.com/tailored-agentic-units/concierge/metrics"
	"github.com/tailored-agentic-units/concierge/notify"
	"github.com/tailored-agentic-units/concierge/provider"
	"github.com/tailored-agentic-units/concierge/provider/mock"
	"github.com/tailored-agentic-units/concierge/session"
)

// --- Test helpers ---

// script answers each stage's model call by its system prompt.
type script struct {
	classify string
	review   func(text string) string
	err      map[string]error
}

func (s script) provider(opts ...mock.Option) *mock.Provider {
	fn := func(_ context.Context, messages []protocol.Message, _ string, _ float64) (string, error) {
		system, user := messages[0].Content, messages[len(messages)-1].Content
		switch system {
		case intent.Prompt:
			if err := s.err["classify"]; err != nil {
				return "", err
			}
			return s.classify, nil
		case guardrail.Prompt:
			if err := s.err["guardrail"]; err != nil {
				return "", err
			}
			if s.review == nil {
				return "APPROVED: " + user, nil
			}
			return s.review(user), nil
		default:
			return "resumen", nil
		}
	}
	return mock.New(append([]mock.Option{mock.WithName("mock"), mock.WithFunc(fn)}, opts...)...)
}

func newEngine(t *testing.T, p provider.Provider, mutate func(*engine.Config), opts ...engine.Option) *engine.Engine {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.Provider = "mock"
	cfg.Observer = "noop"
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := engine.New(&cfg, append([]engine.Option{engine.WithProvider("mock", p)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})
	return e
}

func metricValue(t *testing.T, r *metrics.Recorder, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != metrics.Namespace+"_"+name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			found := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok {
					if v != lp.GetValue() {
						continue next
					}
					found++
				}
			}
			if found != len(labels) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

// failingStore rejects every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Append(context.Context, string, ...protocol.Turn) error { return errStoreDown }
func (failingStore) Turns(context.Context, string) ([]protocol.Turn, error) {
	return nil, errStoreDown
}
func (failingStore) Recent(context.Context, string, int) ([]protocol.Turn, error) {
	return nil, errStoreDown
}
func (failingStore) LoadSummary(context.Context, string) (memory.Summary, error) {
	return memory.Summary{}, errStoreDown
}
func (failingStore) SaveSummary(context.Context, string, memory.Summary) error { return errStoreDown }
func (failingStore) Ping(context.Context) error { return errStoreDown }
func (failingStore) Close() error { return nil }

type notification struct {
	conversationID string
	message        string
	direction      notify.Direction
}

type fakeNotifier struct {
	mu       sync.Mutex
	assigned string
	sent     []notification
}

func (n *fakeNotifier) Notify(_ context.Context, conversationID, message string, direction notify.Direction) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{conversationID, message, direction})
	if direction == notify.Incoming && n.assigned != "" {
		return n.assigned, nil
	}
	return conversationID, nil
}

func (n *fakeNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fakeLabeler struct {
	mu     sync.Mutex
	labels map[string][]string
}

func (l *fakeLabeler) Label(_ context.Context, conversationID, label string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.labels == nil {
		l.labels = map[string][]string{}
	}
	l.labels[conversationID] = append(l.labels[conversationID], label)
	return nil
}

func (l *fakeLabeler) get(conversationID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.labels[conversationID]
}

// --- Tests ---

func TestHandle_GreetingScenario(t *testing.T) {
	rec := metrics.New()
	e := newEngine(t, script{classify: "saludo"}.provider(), nil, engine.WithRecorder(rec))

	reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "Hola"})
	require.NoError(t, err)

	assert.Equal(t, handlers.GreetingReply, reply.Reply)
	assert.Equal(t, "greeting", reply.Intent)
	assert.Equal(t, "s1", reply.ConversationID)
	assert.Equal(t, "mock", reply.Provider)
	assert.Equal(t, "gpt-4o-mini", reply.Model)
	assert.Empty(t, reply.ErrorKind)
	assert.Equal(t, []engine.HistoryEntry{
		{Role: "user", Content: "Hola"},
		{Role: "assistant", Content: handlers.GreetingReply},
	}, reply.RecentHistory)

	assert.Equal(t, reply.RecentHistory, e.History(context.Background(), "s1", 2))
	assert.Equal(t, 1.0, metricValue(t, rec, "intent_total", map[string]string{"intent": "greeting"}))
	assert.Equal(t, 1.0, metricValue(t, rec, "guardrail_total", map[string]string{"result": "approved"}))
	assert.Equal(t, 1.0, metricValue(t, rec, "agent_requests_total", map[string]string{"agent_name": "greeting", "status": "success"}))
	assert.Equal(t, 0.0, metricValue(t, rec, "active_sessions", nil))
}

func TestHandle_UnknownIntentRoutesToDefault(t *testing.T) {
	for _, out := range []string{"banana", "", "no estoy seguro"} {
		t.Run(fmt.Sprintf("%q", out), func(t *testing.T) {
			e := newEngine(t, script{classify: out}.provider(), nil)

			reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "¿venden bicicletas?"})
			require.NoError(t, err)
			assert.Equal(t, "other", reply.Intent)
			assert.Equal(t, handlers.OtherReply, reply.Reply)
		})
	}
}

func TestHandle_ClassificationIsDeterministic(t *testing.T) {
	e := newEngine(t, script{classify: "pedido"}.provider(), nil)

	first, err := e.Handle(context.Background(), engine.Request{SessionID: "a", Text: "mi pedido"})
	require.NoError(t, err)
	second, err := e.Handle(context.Background(), engine.Request{SessionID: "b", Text: "mi pedido"})
	require.NoError(t, err)

	assert.Equal(t, "order", first.Intent)
	assert.Equal(t, first.Intent, second.Intent)
	assert.Equal(t, first.Reply, second.Reply)
}

func TestHandle_Guardrail(t *testing.T) {
	tests := []struct {
		name    string
		review  func(string) string
		disable bool
		enabled *bool
		want    string
		outcome string
	}{
		{
			name:    "approved",
			want:    handlers.OrdersReply,
			outcome: "approved",
		},
		{
			name:    "rejected with correction",
			review:  func(string) string { return "RECHAZADO: Pronto te contactaremos." },
			want:    "Pronto te contactaremos.",
			outcome: "rejected",
		},
		{
			name:    "unparsed output fails open",
			review:  func(string) string { return "Looks fine to me" },
			want:    handlers.OrdersReply,
			outcome: "fallback",
		},
		{
			name:    "disabled per request",
			review:  func(string) string { return "REJECTED: never" },
			disable: true,
			want:    handlers.OrdersReply,
			outcome: "skipped",
		},
		{
			name:    "disabled globally",
			review:  func(string) string { return "REJECTED: never" },
			enabled: new(bool),
			want:    handlers.OrdersReply,
			outcome: "skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := metrics.New()
			p := script{classify: "pedido", review: tt.review}.provider()
			e := newEngine(t, p, func(c *engine.Config) {
				if tt.enabled != nil {
					c.Guardrail.Enabled = tt.enabled
				}
			}, engine.WithRecorder(rec))

			reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "mi pedido", DisableGuardrail: tt.disable})
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Reply)
			assert.Equal(t, 1.0, metricValue(t, rec, "guardrail_total", map[string]string{"result": tt.outcome}))

			if tt.outcome == "skipped" {
				for _, call := range p.Calls() {
					assert.NotEqual(t, guardrail.Prompt, call.Messages[0].Content)
				}
			}
		})
	}
}

func TestHandle_HandlerFailureStillCompletes(t *testing.T) {
	rec := metrics.New()
	broken := handlers.Func("greeting", func(context.Context, handlers.Input) (string, error) {
		return "", errors.New("sub-agent exploded")
	})
	e := newEngine(t, script{classify: "saludo"}.provider(), nil,
		engine.WithHandler(intent.Greeting, broken),
		engine.WithRecorder(rec),
	)

	reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "Hola"})
	require.NoError(t, err)
	assert.Equal(t, "greeting", reply.Intent)
	assert.Equal(t, handlers.Apology, reply.Reply)
	assert.Empty(t, reply.ErrorKind)
	assert.Equal(t, 1.0, metricValue(t, rec, "agent_requests_total", map[string]string{"agent_name": "greeting", "status": "error"}))
}

func TestHandle_ErrorTerminal(t *testing.T) {
	tests := []struct {
		name   string
		script script
		mutate func(*engine.Config)
		opts   []engine.Option
		kind   string
	}{
		{
			name:   "classifier unavailable",
			script: script{err: map[string]error{"classify": fmt.Errorf("%w: connection refused", provider.ErrUnavailable)}},
			kind:   engine.KindUnavailable,
		},
		{
			name:   "guardrail unavailable",
			script: script{classify: "saludo", err: map[string]error{"guardrail": provider.ErrUnavailable}},
			kind:   engine.KindUnavailable,
		},
		{
			name:   "handler timeout",
			script: script{classify: "saludo"},
			mutate: func(c *engine.Config) { c.Timeouts.Dispatch = config.Duration(20 * time.Millisecond) },
			opts: []engine.Option{engine.WithHandler(intent.Greeting, handlers.Func("greeting", func(ctx context.Context, _ handlers.Input) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}))},
			kind: engine.KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := metrics.New()
			e := newEngine(t, tt.script.provider(), tt.mutate, append(tt.opts, engine.WithRecorder(rec))...)

			reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "Hola"})
			require.NoError(t, err)
			assert.Equal(t, engine.Apology, reply.Reply)
			assert.Equal(t, "error", reply.Intent)
			assert.Equal(t, tt.kind, reply.ErrorKind)
			assert.Equal(t, "s1", reply.ConversationID)
			assert.Equal(t, []engine.HistoryEntry{
				{Role: "user", Content: "Hola"},
				{Role: "assistant", Content: engine.Apology},
			}, reply.RecentHistory)
			assert.Equal(t, 1.0, metricValue(t, rec, "intent_total", map[string]string{"intent": "error"}))
			assert.Zero(t, metricValue(t, rec, "guardrail_total", map[string]string{"result": "fallback"}))
		})
	}
}

func TestHandle_GuardrailErrorNotCountedAsFallback(t *testing.T) {
	rec := metrics.New()
	p := script{classify: "saludo", err: map[string]error{"guardrail": provider.ErrUnavailable}}.provider()
	e := newEngine(t, p, nil, engine.WithRecorder(rec))

	reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "Hola"})
	require.NoError(t, err)
	assert.Equal(t, "error", reply.Intent)
	assert.Equal(t, 1.0, metricValue(t, rec, "guardrail_total", map[string]string{"result": "error"}))
	assert.Zero(t, metricValue(t, rec, "guardrail_total", map[string]string{"result": "fallback"}))
}

func TestHandle_MemoryDegradation(t *testing.T) {
	rec := metrics.New()
	e := newEngine(t, script{classify: "saludo"}.provider(), nil,
		engine.WithStore(failingStore{}),
		engine.WithRecorder(rec),
	)

	reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "Hola"})
	require.NoError(t, err)
	assert.Equal(t, handlers.GreetingReply, reply.Reply)
	assert.True(t, e.Degraded())
	assert.Equal(t, 1.0, metricValue(t, rec, "memory_store_degraded", nil))
	assert.Len(t, reply.RecentHistory, 2)
}

func TestHandle_RequestErrors(t *testing.T) {
	e := newEngine(t, script{classify: "saludo"}.provider(), nil)

	_, err := e.Handle(context.Background(), engine.Request{Text: "Hola"})
	assert.ErrorIs(t, err, engine.ErrEmptySessionID)

	_, err = e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "   "})
	assert.ErrorIs(t, err, engine.ErrEmptyText)

	_, err = e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "Hola", Provider: "anthropic"})
	var cfgErr *engine.ProviderConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "anthropic", cfgErr.Provider)
	assert.ErrorIs(t, err, provider.ErrUnsupportedProvider)

	assert.Empty(t, e.History(context.Background(), "s1", 10))
}

func TestHandle_ModelOverride(t *testing.T) {
	p := script{classify: "saludo"}.provider()
	e := newEngine(t, p, func(c *engine.Config) { c.Synth.Mode = "refine" })

	temp := 0.7
	reply, err := e.Handle(context.Background(), engine.Request{
		SessionID:   "s1",
		Text:        "Hola",
		Provider:    "MOCK",
		Model:       "gpt-4.1",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", reply.Model)
	assert.Equal(t, "resumen", reply.Reply)

	for _, call := range p.Calls() {
		assert.Equal(t, "gpt-4.1", call.Model)
		switch call.Messages[0].Content {
		case intent.Prompt, guardrail.Prompt:
			assert.Equal(t, 0.0, call.Temperature)
		default:
			assert.Equal(t, 0.7, call.Temperature)
		}
	}
}

func TestHandle_Notifications(t *testing.T) {
	n := &fakeNotifier{assigned: "conv-9"}
	e := newEngine(t, script{classify: "saludo"}.provider(), nil, engine.WithNotifier(n))

	reply, err := e.Handle(context.Background(), engine.Request{SessionID: "51900000000", Text: "Hola"})
	require.NoError(t, err)
	assert.Equal(t, "conv-9", reply.ConversationID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))

	assert.Equal(t, []notification{
		{conversationID: "51900000000", message: "Hola", direction: notify.Incoming},
		{conversationID: "conv-9", message: handlers.GreetingReply, direction: notify.Outgoing},
	}, n.notifications())
}

func TestHandle_Escalation(t *testing.T) {
	n := &fakeNotifier{assigned: "77"}
	l := &fakeLabeler{}
	e := newEngine(t, script{classify: "humano"}.provider(), nil,
		engine.WithNotifier(n),
		engine.WithLabeler(l),
	)

	reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "quiero hablar con una persona"})
	require.NoError(t, err)
	assert.Equal(t, "escalate_to_human", reply.Intent)
	assert.Equal(t, handlers.HumanReply, reply.Reply)
	assert.Equal(t, "77", reply.ConversationID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))
	assert.Equal(t, []string{handlers.HumanLabel}, l.get("77"))
}

func TestHandle_Media(t *testing.T) {
	t.Run("unsupported capability", func(t *testing.T) {
		e := newEngine(t, script{classify: "saludo"}.provider(), nil)

		reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "T2dnUw==", ContentType: "audio/ogg"})
		require.NoError(t, err)
		assert.Equal(t, media.UserMessage(&provider.UnsupportedCapabilityError{}), reply.Reply)
		assert.Empty(t, reply.ErrorKind)
		assert.Len(t, reply.RecentHistory, 2)
	})

	t.Run("unsupported type", func(t *testing.T) {
		e := newEngine(t, script{classify: "saludo"}.provider(), nil)

		reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "x", ContentType: "video/mp4"})
		require.NoError(t, err)
		assert.Contains(t, reply.Reply, "video/mp4")
	})

	t.Run("transcribed", func(t *testing.T) {
		p := script{classify: "saludo"}.provider(
			mock.WithCapabilities(protocol.Chat, protocol.Audio),
			mock.WithTranscript(" Hola "),
		)
		e := newEngine(t, p, nil)

		reply, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: "T2dnUw==", ContentType: "audio/ogg", Filename: "nota.ogg"})
		require.NoError(t, err)
		assert.Equal(t, handlers.GreetingReply, reply.Reply)
		assert.Equal(t, "Hola", reply.RecentHistory[0].Content)
	})
}

func TestHandle_ConcurrentSameSession(t *testing.T) {
	condense := session.CondenserFunc(func(_ context.Context, previous string, turns []protocol.Turn) (string, error) {
		parts := []string{}
		if previous != "" {
			parts = append(parts, previous)
		}
		for _, t := range turns {
			if t.Role == protocol.RoleUser {
				parts = append(parts, t.Content)
			}
		}
		return strings.Join(parts, " | "), nil
	})

	e := newEngine(t, script{classify: "pedido"}.provider(), func(c *engine.Config) {
		c.Session.TokenBudget = 1
	}, engine.WithCondenser(condense))

	var wg sync.WaitGroup
	for _, text := range []string{"primero", "segundo"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Handle(context.Background(), engine.Request{SessionID: "s1", Text: text})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history := e.History(context.Background(), "s1", 10)
	require.Len(t, history, 4)

	var users []string
	for _, h := range history {
		if h.Role == "user" {
			users = append(users, h.Content)
		}
	}
	assert.ElementsMatch(t, []string{"primero", "segundo"}, users)

	assert.NotEmpty(t, e.Summary(context.Background(), "s1"))
	recalled := e.Context(context.Background(), "s1")
	for _, text := range users {
		assert.Equal(t, 1, strings.Count(recalled, text), "context %q", recalled)
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*engine.Config)
	}{
		{name: "synth mode", mutate: func(c *engine.Config) { c.Synth.Mode = "poetry" }},
		{name: "default intent", mutate: func(c *engine.Config) { c.DefaultIntent = "weather" }},
		{name: "default provider", mutate: func(c *engine.Config) { c.Provider = "anthropic" }},
		{name: "observer", mutate: func(c *engine.Config) { c.Observer = "missing" }},
		{name: "memory backend", mutate: func(c *engine.Config) { c.Memory.Backend = "cassandra" }},
		{name: "probe schedule", mutate: func(c *engine.Config) {
			c.Memory.Backend = memory.BackendFile
			c.Memory.Path = t.TempDir()
			c.Memory.ProbeSchedule = "whenever"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := engine.DefaultConfig()
			cfg.Provider = "mock"
			cfg.Observer = "noop"
			tt.mutate(&cfg)

			_, err := engine.New(&cfg, engine.WithProvider("mock", mock.New()))
			assert.Error(t, err)
		})
	}
}
