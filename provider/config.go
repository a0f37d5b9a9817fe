package provider

import (
	"fmt"
	"time"

	"github.com/tailored-agentic-units/concierge/core/config"
)

// Provider names accepted by Config.Name.
const (
	OpenAIName = "openai"
	OllamaName = "ollama"
)

// Config holds provider initialization parameters.
type Config struct {
	Name    string          `json:"name,omitempty" yaml:"name,omitempty"`
	BaseURL string          `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string          `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout config.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig() Config {
	return Config{
		Name:    OpenAIName,
		Timeout: config.Duration(60 * time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}

// New creates the provider named by cfg.Name.
func New(cfg *Config) (Provider, error) {
	switch cfg.Name {
	case OpenAIName:
		return NewOpenAI(cfg)
	case OllamaName:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Name)
	}
}
