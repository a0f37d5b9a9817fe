package media

import "github.com/tailored-agentic-units/concierge/observability"

const (
	EventTranscribed observability.EventType = "media.transcribed"
	EventImageRead   observability.EventType = "media.image_read"
)
