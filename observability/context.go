package observability

import "context"

type sessionKey struct{}

// WithSessionID returns a context carrying the conversation session id.
// SlogObserver attaches it to every record emitted under that context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionID returns the session id carried by ctx, if any.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}
