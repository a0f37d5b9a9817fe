// Package memory provides the persistent conversation store behind the
// session memory model: an append-only turn history and a rolling summary
// per session id, backed by pluggable storage (in-process, file, redis,
// sqlite) and a degrading wrapper that falls back to process memory when
// the backend is unreachable.
package memory

import (
	"context"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// Store persists conversation history keyed by session id. Sessions are
// created lazily on first write; reads of an unknown session return empty
// values, not errors. Implementations must be safe for concurrent use.
type Store interface {
	// Append adds turns to the end of a session's history in order.
	Append(ctx context.Context, sessionID string, turns ...protocol.Turn) error
	// Turns returns the full history of a session in insertion order.
	Turns(ctx context.Context, sessionID string) ([]protocol.Turn, error)
	// Recent returns at most n of the newest turns in insertion order.
	Recent(ctx context.Context, sessionID string, n int) ([]protocol.Turn, error)
	// LoadSummary returns the stored summary state, or the zero Summary.
	LoadSummary(ctx context.Context, sessionID string) (Summary, error)
	// SaveSummary replaces the stored summary state.
	SaveSummary(ctx context.Context, sessionID string, summary Summary) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

func tail(turns []protocol.Turn, n int) []protocol.Turn {
	if n <= 0 {
		return []protocol.Turn{}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]protocol.Turn, len(turns))
	copy(out, turns)
	return out
}
