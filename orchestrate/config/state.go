package config

// GraphConfig defines configuration for state graph execution.
//
// This configuration is used only during initialization, then transformed
// into domain objects. The Observer field is a string to enable JSON and YAML
// configuration with runtime resolution via the observability registry.
//
// Example JSON:
//
//	{
//	  "name": "conversation",
//	  "observer": "slog",
//	  "max_iterations": 16,
//	  "strict": true
//	}
//
// Example resolution:
//
//	var cfg config.GraphConfig
//	json.Unmarshal(data, &cfg)
//	graph, err := state.NewGraph[MyState](cfg)
type GraphConfig struct {
	// Name identifies the graph for observability
	Name string `json:"name" yaml:"name"`

	// Observer specifies which observer implementation to use ("noop", "slog", etc.)
	Observer string `json:"observer" yaml:"observer"`

	// MaxIterations limits graph execution to prevent infinite loops
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// Strict turns any node revisit into an execution error instead of a
	// cycle warning. Acyclic pipelines set this.
	Strict bool `json:"strict" yaml:"strict"`
}

// DefaultGraphConfig returns sensible defaults for graph execution.
//
// Default values:
//   - Observer: "slog" for structured logging
//   - MaxIterations: 1000 to protect against infinite loops
//   - Strict: false (revisits emit cycle.detected and continue)
func DefaultGraphConfig(name string) GraphConfig {
	return GraphConfig{
		Name:          name,
		Observer:      "slog",
		MaxIterations: 1000,
	}
}

func (c *GraphConfig) Merge(source *GraphConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}

	if source.Strict {
		c.Strict = source.Strict
	}
}
