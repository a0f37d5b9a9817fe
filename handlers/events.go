package handlers

import "github.com/tailored-agentic-units/concierge/observability"

const (
	EventDispatch        observability.EventType = "handler.dispatch"
	EventComplete        observability.EventType = "handler.complete"
	EventFailed          observability.EventType = "handler.failed"
	EventEscalationLabel observability.EventType = "handler.escalation.label"
)
