package state

import "context"

// Node represents a computation step in a state graph.
//
// Nodes receive state, perform computation or model calls, and return updated
// state. The interface is minimal to support diverse implementations.
type Node[S any] interface {
	// Execute transforms state based on node logic.
	// Returns updated state or error. Context enables cancellation/timeouts.
	Execute(ctx context.Context, state S) (S, error)
}

// NodeFunc adapts a function to the Node interface.
//
// This is the most common Node implementation, enabling inline node
// definitions without creating custom types.
//
// Example:
//
//	node := state.NodeFunc[request](func(ctx context.Context, r request) (request, error) {
//	    r.Intent = "greeting"
//	    return r, nil
//	})
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Execute runs the wrapped function with the given state.
func (f NodeFunc[S]) Execute(ctx context.Context, state S) (S, error) {
	return f(ctx, state)
}
