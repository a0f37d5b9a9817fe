package memory

import "github.com/tailored-agentic-units/concierge/observability"

// Memory event types emitted by the resilient store.
const (
	EventDegraded     observability.EventType = "memory.degraded"
	EventRecovered    observability.EventType = "memory.recovered"
	EventProbeFailed  observability.EventType = "memory.probe.failed"
	EventReplayFailed observability.EventType = "memory.replay.failed"
)
