package server

import (
	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/concierge/engine"
)

// NewClient returns a Connect client for the Converse procedure of the
// server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string) *connect.Client[engine.Request, engine.Reply] {
	return connect.NewClient[engine.Request, engine.Reply](httpClient, baseURL+ConverseProcedure, connect.WithCodec(JSONCodec{}))
}
