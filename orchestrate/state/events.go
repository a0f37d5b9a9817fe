package state

import "github.com/tailored-agentic-units/concierge/observability"

const (
	EventGraphStart     observability.EventType = "graph.start"
	EventGraphComplete  observability.EventType = "graph.complete"
	EventGraphFailed    observability.EventType = "graph.failed"
	EventNodeStart      observability.EventType = "node.start"
	EventNodeComplete   observability.EventType = "node.complete"
	EventEdgeEvaluate   observability.EventType = "edge.evaluate"
	EventEdgeTransition observability.EventType = "edge.transition"
	EventCycleDetected  observability.EventType = "cycle.detected"
)
