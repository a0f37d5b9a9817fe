package state

import (
	"errors"
	"fmt"
)

// ErrRevisit is returned (wrapped in ExecutionError) when a strict graph
// attempts to execute a node a second time.
var ErrRevisit = errors.New("node revisited")

// ErrNodePanic is returned (wrapped in ExecutionError) when a node panics.
var ErrNodePanic = errors.New("node panicked")

// ExecutionError captures rich context when graph execution fails.
//
// This error type provides complete execution state for debugging:
//   - NodeName: Which node failed
//   - State: Last committed state value at failure
//   - Path: Full execution path leading to failure
//   - Err: Underlying error from node or graph execution
type ExecutionError struct {
	NodeName string
	State    any
	Path     []string
	Err      error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at node %s: %v", e.NodeName, e.Err)
}

// Unwrap enables error unwrapping for errors.Is and errors.As.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
