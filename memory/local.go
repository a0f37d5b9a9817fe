package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

type localSession struct {
	turns   []protocol.Turn
	summary Summary
}

// LocalStore keeps conversation history in process memory. Reads never
// trigger I/O and return copies. All methods are safe for
// concurrent use.
type LocalStore struct {
	sessions map[string]*localSession
	mu       sync.RWMutex
}

// NewLocalStore creates an empty in-process store.
func NewLocalStore() *LocalStore {
	return &LocalStore{sessions: make(map[string]*localSession)}
}

func (s *LocalStore) Append(_ context.Context, sessionID string, turns ...protocol.Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	sess.turns = append(sess.turns, turns...)
	return nil
}

func (s *LocalStore) Turns(_ context.Context, sessionID string) ([]protocol.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []protocol.Turn{}, nil
	}
	return slices.Clone(sess.turns), nil
}

func (s *LocalStore) Recent(_ context.Context, sessionID string, n int) ([]protocol.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []protocol.Turn{}, nil
	}
	return tail(sess.turns, n), nil
}

func (s *LocalStore) LoadSummary(_ context.Context, sessionID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Summary{}, nil
	}
	return sess.summary.Clone(), nil
}

func (s *LocalStore) SaveSummary(_ context.Context, sessionID string, summary Summary) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session(sessionID).summary = summary.Clone()
	return nil
}

func (s *LocalStore) Ping(context.Context) error { return nil }

func (s *LocalStore) Close() error { return nil }

// Sessions returns the ids of all sessions held, sorted.
func (s *LocalStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Take removes a session and returns its contents.
func (s *LocalStore) Take(sessionID string) ([]protocol.Turn, Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, Summary{}, false
	}
	delete(s.sessions, sessionID)
	return sess.turns, sess.summary, true
}

// Restore puts back contents previously returned by Take. Restored turns are
// placed before any turns appended since; a summary saved since is kept.
func (s *LocalStore) Restore(sessionID string, turns []protocol.Turn, summary Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(sessionID)
	sess.turns = append(slices.Clone(turns), sess.turns...)
	if sess.summary.IsZero() {
		sess.summary = summary
	}
}

// Len reports the number of sessions held.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *LocalStore) session(id string) *localSession {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &localSession{}
		s.sessions[id] = sess
	}
	return sess
}
