// Package state provides a typed, directed execution graph for request
// pipelines.
//
// A Graph threads a caller-defined state value S through nodes (computation
// steps) connected by edges (transitions with optional predicates). Because S
// is a plain value type chosen by the caller, each execution owns its state
// and concurrent executions of the same graph never alias one another.
//
// # Core Components
//
// Node - Interface for computation steps that transform S
//
// NodeFunc - Function adapter implementing Node
//
// Edge - Graph transitions with optional predicates
//
// Graph - Workflow definition and executor
//
// # Example
//
//	type request struct {
//	    Text   string
//	    Intent string
//	}
//
//	graph, err := state.NewGraph[request](config.DefaultGraphConfig("pipeline"))
//	graph.AddNode("classify", state.NodeFunc[request](classify))
//	graph.AddNode("reply", state.NodeFunc[request](reply))
//	graph.AddEdge("classify", "reply", nil)
//	graph.SetEntryPoint("classify")
//	graph.SetExitPoint("reply")
//
//	result, err := graph.Execute(ctx, request{Text: "Hola"})
//
// # Strict Execution
//
// With GraphConfig.Strict set, revisiting a node fails the execution with
// ErrRevisit. Without it, revisits emit EventCycleDetected and continue until
// MaxIterations is exhausted.
//
// # Errors
//
// Every execution failure is returned as *ExecutionError carrying the failing
// node, the last committed state, and the path taken. Node errors are wrapped,
// so errors.Is on the returned error reaches the node's own error values.
package state
