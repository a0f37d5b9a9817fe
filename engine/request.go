package engine

import (
	"github.com/tailored-agentic-units/concierge/guardrail"
	"github.com/tailored-agentic-units/concierge/handlers"
	"github.com/tailored-agentic-units/concierge/intent"
	"github.com/tailored-agentic-units/concierge/notify"
	"github.com/tailored-agentic-units/concierge/provider"
)

// Request is one inbound message. For audio and image content Text holds
// the base64 payload.
type Request struct {
	SessionID        string   `json:"session_id"`
	Text             string   `json:"text"`
	ContentType      string   `json:"content_type,omitempty"`
	Filename         string   `json:"filename,omitempty"`
	Provider         string   `json:"provider,omitempty"`
	Model            string   `json:"model,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	DisableGuardrail bool     `json:"disable_guardrail,omitempty"`
}

// HistoryEntry is one turn as returned to the caller.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the outcome of one request.
type Reply struct {
	Provider       string         `json:"provider"`
	Model          string         `json:"model"`
	Reply          string         `json:"reply"`
	Intent         string         `json:"intent"`
	ConversationID string         `json:"conversation_id"`
	RecentHistory  []HistoryEntry `json:"recent_history"`

	// ErrorKind is set when the request ended in the error terminal.
	ErrorKind string `json:"error_kind,omitempty"`
}

// ModelConfig is the model selection for one request.
type ModelConfig struct {
	Provider    string
	Model       string
	Temperature float64

	client provider.Provider
}

// RequestState is threaded by value through the stages of one request.
// Each stage returns an extended copy; nothing in it is shared with other
// requests.
type RequestState struct {
	SessionID         string
	ConversationID    string
	UserText          string
	ContextSummary    string
	Intent            intent.Intent
	Handler           string
	RawOutput         string
	HandlerStatus     handlers.Status
	FinalOutput       string
	GuardrailDisabled bool
	GuardrailOutcome  guardrail.Outcome
	Model             ModelConfig

	incoming *notify.Future
}
