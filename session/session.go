// Package session implements the conversation memory model on top of a
// memory.Store: an append-only turn history per session plus a rolling
// summary that absorbs older turns once their estimated size exceeds a
// token budget.
//
// Writes never fail the caller. Store errors are reported through the
// observer and the affected operation degrades to an empty result.
package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/memory"
	"github.com/tailored-agentic-units/concierge/observability"
)

// Memory is the session memory model. It is safe for concurrent use; writes
// to one session are serialized while distinct sessions never contend.
type Memory struct {
	store     memory.Store
	condenser Condenser
	budget    int
	observer  observability.Observer
	locks     *keyedMutex
}

// Option configures a Memory.
type Option func(*Memory)

// WithTokenBudget sets the buffer budget in estimated tokens.
func WithTokenBudget(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.budget = n
		}
	}
}

// WithObserver sets the observer for session events.
func WithObserver(o observability.Observer) Option {
	return func(m *Memory) { m.observer = o }
}

// New creates a Memory over store. A nil condenser disables condensation:
// the buffer is still pruned to the budget but the pruned turns are not
// folded into the summary text.
func New(store memory.Store, condenser Condenser, opts ...Option) *Memory {
	m := &Memory{
		store:     store,
		condenser: condenser,
		budget:    DefaultConfig().TokenBudget,
		observer:  observability.NoOpObserver{},
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append records one turn. Failures are reported to the observer only.
func (m *Memory) Append(ctx context.Context, sessionID string, role protocol.Role, text string) {
	if err := m.store.Append(ctx, sessionID, protocol.NewTurn(role, text)); err != nil {
		m.emit(ctx, EventAppendFailed, observability.LevelWarning, sessionID, map[string]any{
			"role":  string(role),
			"error": err.Error(),
		})
	}
}

// Recent returns up to n of the newest turns, oldest first.
func (m *Memory) Recent(ctx context.Context, sessionID string, n int) []protocol.Turn {
	turns, err := m.store.Recent(ctx, sessionID, n)
	if err != nil {
		m.emit(ctx, EventReadFailed, observability.LevelWarning, sessionID, map[string]any{
			"operation": "recent",
			"error":     err.Error(),
		})
		return []protocol.Turn{}
	}
	return turns
}

// Summary returns the condensed summary text, possibly empty.
func (m *Memory) Summary(ctx context.Context, sessionID string) string {
	s, _ := m.load(ctx, sessionID)
	return s.Text
}

// Context returns the summary text followed by the unsummarized buffer
// rendered as "role: content" lines.
func (m *Memory) Context(ctx context.Context, sessionID string) string {
	s, _ := m.load(ctx, sessionID)

	buffered := protocol.RenderTurns(s.Buffer)
	switch {
	case s.Text == "":
		return buffered
	case buffered == "":
		return s.Text
	default:
		return s.Text + "\n\n" + buffered
	}
}

// RecordTurnPair adds a completed exchange to the summary buffer and
// condenses the oldest buffered turns when the buffer exceeds the budget.
//
// The model call runs without holding the session lock. Its result is
// committed only if no other condensation for the session committed in
// between; otherwise it is discarded and the turns stay buffered.
func (m *Memory) RecordTurnPair(ctx context.Context, sessionID, userText, replyText string) {
	unlock := m.locks.Lock(sessionID)

	cur, ok := m.load(ctx, sessionID)
	if !ok {
		unlock()
		return
	}
	cur.Buffer = append(cur.Buffer,
		protocol.NewTurn(protocol.RoleUser, userText),
		protocol.NewTurn(protocol.RoleAssistant, replyText),
	)
	if !m.save(ctx, sessionID, cur) {
		unlock()
		return
	}

	pruned := m.overflow(cur.Buffer)
	if len(pruned) == 0 {
		unlock()
		return
	}
	snapshot := cur.Clone()
	unlock()

	text := snapshot.Text
	if m.condenser != nil {
		condensed, err := m.condenser.Condense(ctx, snapshot.Text, pruned)
		if err != nil {
			m.emit(ctx, EventCondenseFailed, observability.LevelWarning, sessionID, map[string]any{
				"error": err.Error(),
			})
			return
		}
		if strings.TrimSpace(condensed) == "" {
			m.emit(ctx, EventCondenseFailed, observability.LevelWarning, sessionID, map[string]any{
				"error": "empty summary",
			})
			return
		}
		text = condensed
	}

	m.commit(ctx, sessionID, snapshot, text, len(pruned))
}

func (m *Memory) commit(ctx context.Context, sessionID string, snapshot memory.Summary, text string, pruned int) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	cur, ok := m.load(ctx, sessionID)
	if !ok {
		return
	}
	if cur.Covered != snapshot.Covered || len(cur.Buffer) < pruned {
		m.emit(ctx, EventCondenseStale, observability.LevelVerbose, sessionID, map[string]any{
			"covered": cur.Covered,
		})
		return
	}

	cur.Text = text
	cur.Buffer = append([]protocol.Turn(nil), cur.Buffer[pruned:]...)
	cur.Covered += pruned
	cur.Version++

	if m.save(ctx, sessionID, cur) {
		m.emit(ctx, EventCondensed, observability.LevelInfo, sessionID, map[string]any{
			"covered": cur.Covered,
			"version": cur.Version,
			"pruned":  pruned,
		})
	}
}

// overflow returns the oldest turns that must leave the buffer for the
// remainder to fit the budget.
func (m *Memory) overflow(buffer []protocol.Turn) []protocol.Turn {
	total := 0
	for _, t := range buffer {
		total += EstimateTokens(t)
	}

	i := 0
	for total > m.budget && i < len(buffer) {
		total -= EstimateTokens(buffer[i])
		i++
	}
	return buffer[:i]
}

// load reports false when the summary could not be read. Callers that
// write the summary back must stop, or the stored one would be replaced.
func (m *Memory) load(ctx context.Context, sessionID string) (memory.Summary, bool) {
	s, err := m.store.LoadSummary(ctx, sessionID)
	if err != nil {
		m.emit(ctx, EventReadFailed, observability.LevelWarning, sessionID, map[string]any{
			"operation": "load_summary",
			"error":     err.Error(),
		})
		return memory.Summary{}, false
	}
	return s, true
}

func (m *Memory) save(ctx context.Context, sessionID string, s memory.Summary) bool {
	if err := m.store.SaveSummary(ctx, sessionID, s); err != nil {
		m.emit(ctx, EventSummarySaveFail, observability.LevelWarning, sessionID, map[string]any{
			"error": err.Error(),
		})
		return false
	}
	return true
}

func (m *Memory) emit(ctx context.Context, t observability.EventType, level observability.Level, sessionID string, data map[string]any) {
	data["session_id"] = sessionID
	m.observer.OnEvent(ctx, observability.NewEvent(t, level, "session.Memory", data))
}

// EstimateTokens approximates a turn's token count at four characters per
// token, counting the role label.
func EstimateTokens(t protocol.Turn) int {
	n := utf8.RuneCountInString(string(t.Role)) + 2 + utf8.RuneCountInString(t.Content)
	return (n + 3) / 4
}
