package engine

import "github.com/tailored-agentic-units/concierge/observability"

// Engine event types emitted per request.
const (
	EventRequestStart    observability.EventType = "engine.request.start"
	EventRequestComplete observability.EventType = "engine.request.complete"
	EventRequestFailed   observability.EventType = "engine.request.failed"
	EventMediaRejected   observability.EventType = "engine.media.rejected"
	EventConversationID  observability.EventType = "engine.conversation.fallback"
)
