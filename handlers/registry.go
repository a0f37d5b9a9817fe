package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/concierge/intent"
	"github.com/tailored-agentic-units/concierge/observability"
)

// Apology is the reply used when a handler fails.
const Apology = "Lo siento, no pude procesar tu solicitud en este momento. Por favor intenta de nuevo más tarde."

// Registry maps each intent to a handler through a fixed-size table.
// Intents without an explicit handler route to the default handler, so
// every intent always resolves.
type Registry struct {
	mu       sync.RWMutex
	table    [intent.Count]Handler
	fallback Handler
	apology  string
	observer observability.Observer
	recorder Recorder
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithApology replaces the reply used for failed handlers.
func WithApology(text string) RegistryOption {
	return func(r *Registry) { r.apology = text }
}

// WithObserver sets the observer for dispatch events.
func WithObserver(o observability.Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// WithRecorder sets the metrics sink for handler latency and status.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) { r.recorder = rec }
}

// NewRegistry creates a Registry whose unassigned intents route to fallback.
func NewRegistry(fallback Handler, opts ...RegistryOption) (*Registry, error) {
	if fallback == nil {
		return nil, ErrNoDefault
	}

	r := &Registry{
		fallback: fallback,
		apology:  Apology,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Set assigns h to intent i, replacing any previous assignment.
func (r *Registry) Set(i intent.Intent, h Handler) error {
	if !i.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidIntent, i)
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, i)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[i] = h
	return nil
}

// Lookup returns the handler for i, or the default handler.
func (r *Registry) Lookup(i intent.Intent) Handler {
	if !i.Valid() {
		return r.fallback
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if h := r.table[i]; h != nil {
		return h
	}
	return r.fallback
}

// Dispatch runs the handler for i and returns exactly one Result.
//
// A failing or panicking handler yields a StatusError result with the apology text
// and a nil error. Only context expiry is returned as an error, so the
// caller can treat a stage timeout as fatal for the request.
func (r *Registry) Dispatch(ctx context.Context, i intent.Intent, in Input) (Result, error) {
	h := r.Lookup(i)
	name := h.Name()

	r.observer.OnEvent(ctx, observability.NewEvent(EventDispatch, observability.LevelVerbose, "handlers.Registry", map[string]any{
		"intent":  i.String(),
		"handler": name,
	}))

	start := time.Now()
	text, err := r.run(ctx, h, in)
	elapsed := time.Since(start)

	if err != nil {
		r.record(name, StatusError, elapsed)
		r.observer.OnEvent(ctx, observability.NewEvent(EventFailed, observability.LevelWarning, "handlers.Registry", map[string]any{
			"intent":   i.String(),
			"handler":  name,
			"error":    err.Error(),
			"duration": elapsed.String(),
		}))

		if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			return Result{Handler: name, RawText: r.apology, Status: StatusError}, ctxErr
		}
		return Result{Handler: name, RawText: r.apology, Status: StatusError}, nil
	}

	r.record(name, StatusSuccess, elapsed)
	r.observer.OnEvent(ctx, observability.NewEvent(EventComplete, observability.LevelVerbose, "handlers.Registry", map[string]any{
		"intent":   i.String(),
		"handler":  name,
		"duration": elapsed.String(),
	}))
	return Result{Handler: name, RawText: text, Status: StatusSuccess}, nil
}

func (r *Registry) run(ctx context.Context, h Handler, in Input) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, h.Name(), rec)
		}
	}()
	return h.Handle(ctx, in)
}

func (r *Registry) record(name string, status Status, elapsed time.Duration) {
	if r.recorder != nil {
		r.recorder.ObserveAgent(name, string(status), elapsed)
	}
}
