package server

import "github.com/tailored-agentic-units/concierge/observability"

const (
	EventListening     observability.EventType = "server.listening"
	EventStopped       observability.EventType = "server.stopped"
	EventRequestFailed observability.EventType = "server.request.failed"
)
