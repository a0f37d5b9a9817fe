// Package handlers holds the domain handlers that answer a classified
// message, and the registry that maps every intent to exactly one of them.
package handlers

import (
	"context"
	"time"
)

// Status is the outcome of a handler run as seen by the engine.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Input is the request data handed to a handler. Handlers never read or
// write session memory directly.
type Input struct {
	SessionID      string
	ConversationID string
	UserText       string
	ContextSummary string
}

// Result is the single outcome of a dispatch.
type Result struct {
	Handler string
	RawText string
	Status  Status
}

// Handler answers a message for one or more intents. Implementations must
// be safe for concurrent use.
type Handler interface {
	Name() string
	Handle(ctx context.Context, in Input) (string, error)
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, in Input) (string, error)
}

func (h funcHandler) Name() string { return h.name }

func (h funcHandler) Handle(ctx context.Context, in Input) (string, error) {
	return h.fn(ctx, in)
}

// Func adapts a function to the Handler interface.
func Func(name string, fn func(ctx context.Context, in Input) (string, error)) Handler {
	return funcHandler{name: name, fn: fn}
}

// Canned returns a handler that always replies with text.
func Canned(name, text string) Handler {
	return Func(name, func(context.Context, Input) (string, error) {
		return text, nil
	})
}

// Recorder receives per-handler latency and status.
type Recorder interface {
	ObserveAgent(name, status string, elapsed time.Duration)
}
