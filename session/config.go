package session

// Config holds session memory parameters.
type Config struct {
	// TokenBudget bounds the estimated size of the unsummarized buffer.
	TokenBudget int `json:"token_budget,omitempty" yaml:"token_budget,omitempty"`
	// RecentWindow is the number of turns returned with each reply.
	RecentWindow int `json:"recent_window,omitempty" yaml:"recent_window,omitempty"`
	// CondenseModel overrides the model used for condensation.
	CondenseModel string `json:"condense_model,omitempty" yaml:"condense_model,omitempty"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		TokenBudget:  800,
		RecentWindow: 10,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.TokenBudget > 0 {
		c.TokenBudget = source.TokenBudget
	}
	if source.RecentWindow > 0 {
		c.RecentWindow = source.RecentWindow
	}
	if source.CondenseModel != "" {
		c.CondenseModel = source.CondenseModel
	}
}
