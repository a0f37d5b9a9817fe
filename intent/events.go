package intent

import "github.com/tailored-agentic-units/concierge/observability"

const (
	EventClassified   observability.EventType = "intent.classified"
	EventUnrecognized observability.EventType = "intent.unrecognized"
	EventFailed       observability.EventType = "intent.failed"
)
