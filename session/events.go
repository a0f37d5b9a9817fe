package session

import "github.com/tailored-agentic-units/concierge/observability"

const (
	EventAppendFailed    observability.EventType = "session.append.failed"
	EventReadFailed      observability.EventType = "session.read.failed"
	EventCondensed       observability.EventType = "session.condensed"
	EventCondenseFailed  observability.EventType = "session.condense.failed"
	EventCondenseStale   observability.EventType = "session.condense.stale"
	EventSummarySaveFail observability.EventType = "session.summary.failed"
)
