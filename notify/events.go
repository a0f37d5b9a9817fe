package notify

import "github.com/tailored-agentic-units/concierge/observability"

// Side-effect event types emitted by the dispatcher.
const (
	EventTaskComplete observability.EventType = "notify.task.complete"
	EventTaskFailed   observability.EventType = "notify.task.failed"
	EventTaskDropped  observability.EventType = "notify.task.dropped"
)
