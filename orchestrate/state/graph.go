package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/concierge/observability"
	"github.com/tailored-agentic-units/concierge/orchestrate/config"
)

// Graph defines a workflow as a directed graph of nodes and edges over a
// state value of type S.
//
// Construction (AddNode, AddEdge, SetEntryPoint, SetExitPoint) is not safe
// for concurrent use. Once built, Execute may be called concurrently: each
// execution threads its own copy of S and never mutates the graph.
type Graph[S any] struct {
	name          string
	nodes         map[string]Node[S]
	edges         map[string][]Edge[S]
	entryPoint    string
	exitPoints    map[string]bool
	maxIterations int
	strict        bool
	observer      observability.Observer
}

// NewGraph creates a new state graph from configuration.
//
// The constructor resolves the observer from the observability registry and
// initializes the graph with empty node/edge collections.
func NewGraph[S any](cfg config.GraphConfig) (*Graph[S], error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	return NewGraphWithObserver[S](cfg, observer), nil
}

// NewGraphWithObserver creates a graph that reports to the given observer
// instead of resolving one by name. A nil observer discards events.
func NewGraphWithObserver[S any](cfg config.GraphConfig, observer observability.Observer) *Graph[S] {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	return &Graph[S]{
		name:          cfg.Name,
		nodes:         make(map[string]Node[S]),
		edges:         make(map[string][]Edge[S]),
		exitPoints:    make(map[string]bool),
		maxIterations: cfg.MaxIterations,
		strict:        cfg.Strict,
		observer:      observer,
	}
}

// Name returns the graph identifier for event metadata.
func (g *Graph[S]) Name() string {
	return g.name
}

// AddNode registers a computation step in the graph.
//
// Nodes must have unique names. Adding a duplicate node returns an error.
func (g *Graph[S]) AddNode(name string, node Node[S]) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}

	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %s already exists", name)
	}

	g.nodes[name] = node
	return nil
}

// AddEdge creates a transition between nodes.
//
// Both nodes must exist before adding an edge. Predicate can be nil for
// unconditional transitions. Edges from the same node are evaluated in the
// order they were added; the first match wins.
func (g *Graph[S]) AddEdge(from, to string, predicate TransitionPredicate[S]) error {
	return g.AddNamedEdge(from, to, "", predicate)
}

// AddNamedEdge is AddEdge with a predicate name reported in transition events.
func (g *Graph[S]) AddNamedEdge(from, to, name string, predicate TransitionPredicate[S]) error {
	if from == "" {
		return fmt.Errorf("from node cannot be empty")
	}

	if to == "" {
		return fmt.Errorf("to node cannot be empty")
	}

	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("from node %s does not exist", from)
	}

	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("to node %s does not exist", to)
	}

	g.edges[from] = append(g.edges[from], Edge[S]{
		From:      from,
		To:        to,
		Name:      name,
		Predicate: predicate,
	})
	return nil
}

// SetEntryPoint defines the starting node for execution.
//
// The entry point node must exist. Only one entry point is allowed.
func (g *Graph[S]) SetEntryPoint(node string) error {
	if node == "" {
		return fmt.Errorf("entry point cannot be empty")
	}

	if g.entryPoint != "" {
		return fmt.Errorf("entry point already set to %s", g.entryPoint)
	}

	if _, exists := g.nodes[node]; !exists {
		return fmt.Errorf("entry point node %s does not exist", node)
	}

	g.entryPoint = node
	return nil
}

// SetExitPoint defines a terminal node where execution stops.
//
// Multiple exit points are supported. The exit point node must exist.
func (g *Graph[S]) SetExitPoint(node string) error {
	if node == "" {
		return fmt.Errorf("exit point cannot be empty")
	}

	if _, exists := g.nodes[node]; !exists {
		return fmt.Errorf("exit point node %s does not exist", node)
	}

	g.exitPoints[node] = true
	return nil
}

// Validate checks graph structure for common configuration errors.
//
// Validation ensures:
//   - At least one node exists
//   - Entry point is set
//   - At least one exit point is set
//   - MaxIterations is positive
//
// Execute calls Validate; callers building a graph at startup should call it
// explicitly so configuration mistakes fail loudly before serving traffic.
func (g *Graph[S]) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}

	if g.entryPoint == "" {
		return fmt.Errorf("entry point not set")
	}

	if len(g.exitPoints) == 0 {
		return fmt.Errorf("no exit points set")
	}

	if g.maxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", g.maxIterations)
	}

	return nil
}

// Execute runs the graph from the entry point with the initial state.
//
// Execution follows this algorithm:
//  1. Validate graph structure
//  2. Start at entry point node
//  3. Execute current node with state
//  4. Stop if current node is an exit point
//  5. Evaluate outgoing edges in order to find next node
//  6. Repeat from step 3 with next node
//
// The returned state is the last state committed by a successful node. On
// failure the error is an *ExecutionError.
func (g *Graph[S]) Execute(ctx context.Context, initial S) (S, error) {
	if err := g.Validate(); err != nil {
		return initial, fmt.Errorf("graph validation failed: %w", err)
	}

	runID := uuid.New().String()

	g.emit(ctx, EventGraphStart, observability.LevelVerbose, map[string]any{
		"entry_point": g.entryPoint,
		"run_id":      runID,
		"exit_points": len(g.exitPoints),
	})

	current := g.entryPoint
	state := initial
	iterations := 0
	visited := make(map[string]int, len(g.nodes))
	path := make([]string, 0, len(g.nodes))

	fail := func(node string, err error) (S, error) {
		g.emit(ctx, EventGraphFailed, observability.LevelWarning, map[string]any{
			"node":   node,
			"run_id": runID,
			"path":   path,
			"error":  err.Error(),
		})
		return state, &ExecutionError{NodeName: node, State: state, Path: path, Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(current, fmt.Errorf("execution cancelled: %w", err))
		}

		iterations++
		if iterations > g.maxIterations {
			return fail(current, fmt.Errorf("max iterations (%d) exceeded", g.maxIterations))
		}

		visited[current]++
		path = append(path, current)

		if visited[current] > 1 {
			if g.strict {
				return fail(current, fmt.Errorf("%w: %s", ErrRevisit, current))
			}

			g.emit(ctx, EventCycleDetected, observability.LevelWarning, map[string]any{
				"node":        current,
				"visit_count": visited[current],
				"iteration":   iterations,
			})
		}

		node, exists := g.nodes[current]
		if !exists {
			return fail(current, fmt.Errorf("node %s not found", current))
		}

		g.emit(ctx, EventNodeStart, observability.LevelVerbose, map[string]any{
			"node":      current,
			"iteration": iterations,
		})

		next, err := g.run(ctx, current, node, state)

		g.emit(ctx, EventNodeComplete, observability.LevelVerbose, map[string]any{
			"node":      current,
			"iteration": iterations,
			"error":     err != nil,
		})

		if err != nil {
			return fail(current, fmt.Errorf("node execution failed: %w", err))
		}

		state = next

		if g.exitPoints[current] {
			g.emit(ctx, EventGraphComplete, observability.LevelVerbose, map[string]any{
				"exit_point": current,
				"run_id":     runID,
				"iterations": iterations,
			})
			return state, nil
		}

		edges, hasEdges := g.edges[current]
		if !hasEdges {
			return fail(current, fmt.Errorf("node %s has no outgoing edges and is not an exit point", current))
		}

		nextNode := ""
		for i, edge := range edges {
			g.emit(ctx, EventEdgeEvaluate, observability.LevelVerbose, map[string]any{
				"from":          edge.From,
				"to":            edge.To,
				"edge_index":    i,
				"has_predicate": edge.Predicate != nil,
			})

			if edge.Predicate == nil || edge.Predicate(state) {
				nextNode = edge.To

				g.emit(ctx, EventEdgeTransition, observability.LevelVerbose, map[string]any{
					"from":           edge.From,
					"to":             edge.To,
					"edge_index":     i,
					"predicate_name": edge.Name,
				})
				break
			}
		}

		if nextNode == "" {
			return fail(current, fmt.Errorf("no valid transition from node %s", current))
		}

		current = nextNode
	}
}

// run executes a single node, converting a panic into ErrNodePanic.
func (g *Graph[S]) run(ctx context.Context, name string, node Node[S], state S) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = state
			err = errors.Join(ErrNodePanic, fmt.Errorf("node %s: %v", name, r))
		}
	}()
	return node.Execute(ctx, state)
}

func (g *Graph[S]) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	g.observer.OnEvent(ctx, observability.NewEvent(eventType, level, g.name, data))
}
