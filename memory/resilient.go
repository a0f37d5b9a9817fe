package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tailored-agentic-units/concierge/core/protocol"
	"github.com/tailored-agentic-units/concierge/observability"
)

// ResilientOption configures a Resilient store.
type ResilientOption func(*Resilient)

// WithObserver sets the observer that receives degradation events.
func WithObserver(o observability.Observer) ResilientOption {
	return func(r *Resilient) { r.observer = o }
}

// WithStateHook registers a callback invoked whenever the store enters or
// leaves degraded mode.
func WithStateHook(hook func(degraded bool)) ResilientOption {
	return func(r *Resilient) { r.hook = hook }
}

// Resilient wraps a primary Store with an in-process fallback. The first
// primary outage switches the store into degraded mode: all reads and
// writes go to the fallback until Probe finds the primary reachable again
// and replays the fallback contents into it. Reads in degraded mode serve
// what was written since the degradation. Errors caused by the caller's
// context or by a malformed record are returned without degrading.
type Resilient struct {
	primary  Store
	fallback *LocalStore
	degraded atomic.Bool
	mu       sync.RWMutex
	observer observability.Observer
	hook     func(degraded bool)
}

// NewResilient wraps primary. A nil primary runs permanently on the fallback.
func NewResilient(primary Store, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		primary:  primary,
		fallback: NewLocalStore(),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if primary == nil {
		r.primary = r.fallback
	}
	return r
}

// Degraded reports whether the store is currently serving from the fallback.
func (r *Resilient) Degraded() bool {
	return r.degraded.Load()
}

func (r *Resilient) Append(ctx context.Context, sessionID string, turns ...protocol.Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	return r.write(ctx, "append",
		func() error { return r.primary.Append(ctx, sessionID, turns...) },
		func() error { return r.fallback.Append(ctx, sessionID, turns...) },
	)
}

func (r *Resilient) Turns(ctx context.Context, sessionID string) ([]protocol.Turn, error) {
	if !r.degraded.Load() {
		turns, err := r.primary.Turns(ctx, sessionID)
		if err == nil {
			return turns, nil
		}
		if !outage(ctx, err) {
			return nil, err
		}
		r.degrade(ctx, "turns", err)
	}
	return r.fallback.Turns(ctx, sessionID)
}

func (r *Resilient) Recent(ctx context.Context, sessionID string, n int) ([]protocol.Turn, error) {
	if !r.degraded.Load() {
		turns, err := r.primary.Recent(ctx, sessionID, n)
		if err == nil {
			return turns, nil
		}
		if !outage(ctx, err) {
			return nil, err
		}
		r.degrade(ctx, "recent", err)
	}
	return r.fallback.Recent(ctx, sessionID, n)
}

func (r *Resilient) LoadSummary(ctx context.Context, sessionID string) (Summary, error) {
	if !r.degraded.Load() {
		summary, err := r.primary.LoadSummary(ctx, sessionID)
		if err == nil {
			return summary, nil
		}
		if !outage(ctx, err) {
			return Summary{}, err
		}
		r.degrade(ctx, "load_summary", err)
	}
	return r.fallback.LoadSummary(ctx, sessionID)
}

func (r *Resilient) SaveSummary(ctx context.Context, sessionID string, summary Summary) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	return r.write(ctx, "save_summary",
		func() error { return r.primary.SaveSummary(ctx, sessionID, summary) },
		func() error { return r.fallback.SaveSummary(ctx, sessionID, summary) },
	)
}

// write sends a mutation to the primary while healthy and to the fallback
// while degraded. A primary error that is not an outage is returned as is.
// The degraded check is repeated under the read lock so a
// write cannot land in the fallback after Probe has drained it.
func (r *Resilient) write(ctx context.Context, op string, primary, fallback func() error) error {
	for {
		if !r.degraded.Load() {
			err := primary()
			if err == nil {
				return nil
			}
			if !outage(ctx, err) {
				return err
			}
			r.degrade(ctx, op, err)
		}

		r.mu.RLock()
		if r.degraded.Load() {
			err := fallback()
			r.mu.RUnlock()
			return err
		}
		r.mu.RUnlock()
	}
}

// Ping reports the primary's reachability.
func (r *Resilient) Ping(ctx context.Context) error {
	return r.primary.Ping(ctx)
}

func (r *Resilient) Close() error {
	return r.primary.Close()
}

// Probe checks a degraded store's primary. When it answers, the fallback
// contents are replayed into it and the store leaves degraded mode. Probe is
// a no-op while healthy.
//
// Replayed turns are appended after whatever the primary already holds. A
// fallback summary is written only when the primary has none for that
// session.
func (r *Resilient) Probe(ctx context.Context) error {
	if !r.degraded.Load() {
		return nil
	}

	if err := r.primary.Ping(ctx); err != nil {
		r.observer.OnEvent(ctx, observability.NewEvent(EventProbeFailed, observability.LevelVerbose, "memory.Resilient", map[string]any{
			"error": err.Error(),
		}))
		return err
	}

	for range 3 {
		if err := r.replay(ctx); err != nil {
			r.observer.OnEvent(ctx, observability.NewEvent(EventReplayFailed, observability.LevelWarning, "memory.Resilient", map[string]any{
				"error": err.Error(),
			}))
			return err
		}

		r.mu.Lock()
		if r.fallback.Len() == 0 {
			r.degraded.Store(false)
			r.mu.Unlock()

			r.observer.OnEvent(ctx, observability.NewEvent(EventRecovered, observability.LevelInfo, "memory.Resilient", nil))
			if r.hook != nil {
				r.hook(false)
			}
			return nil
		}
		r.mu.Unlock()
	}

	return fmt.Errorf("%w: fallback still receiving writes", ErrUnavailable)
}

func (r *Resilient) replay(ctx context.Context) error {
	for _, id := range r.fallback.Sessions() {
		turns, summary, ok := r.fallback.Take(id)
		if !ok {
			continue
		}

		if len(turns) > 0 {
			if err := r.primary.Append(ctx, id, turns...); err != nil {
				r.fallback.Restore(id, turns, summary)
				return err
			}
		}

		if err := r.replaySummary(ctx, id, summary); err != nil {
			r.fallback.Restore(id, nil, summary)
			return err
		}
	}
	return nil
}

func (r *Resilient) replaySummary(ctx context.Context, id string, summary Summary) error {
	if summary.IsZero() {
		return nil
	}

	existing, err := r.primary.LoadSummary(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsZero() {
		return nil
	}
	return r.primary.SaveSummary(ctx, id, summary)
}

// outage reports whether err means the primary is unreachable. Errors
// caused by the caller's own context or by a malformed record are returned
// to the caller and leave the store healthy.
func outage(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, ErrCorrupt) && !errors.Is(err, ErrEmptySessionID)
}

func (r *Resilient) degrade(ctx context.Context, op string, cause error) {
	if !r.degraded.CompareAndSwap(false, true) {
		return
	}

	r.observer.OnEvent(ctx, observability.NewEvent(EventDegraded, observability.LevelWarning, "memory.Resilient", map[string]any{
		"operation": op,
		"error":     cause.Error(),
	}))
	if r.hook != nil {
		r.hook(true)
	}
}
