package observability

import (
	"context"
	"log/slog"
)

// SlogObserver emits events to a slog.Logger. Event levels are mapped via
// SlogLevel, the event type becomes the log message, and Data keys are
// flattened as top-level slog attributes. A session id carried by the
// context is added as the session_id attribute.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that emits to the given logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+2)
	attrs = append(attrs, slog.String("source", event.Source))
	if id, ok := SessionID(ctx); ok {
		attrs = append(attrs, slog.String("session_id", id))
	}
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}

	o.logger.LogAttrs(ctx, event.Level.SlogLevel(), string(event.Type), attrs...)
}
