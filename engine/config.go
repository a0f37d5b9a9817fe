package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/concierge/core/config"
	"github.com/tailored-agentic-units/concierge/guardrail"
	"github.com/tailored-agentic-units/concierge/memory"
	"github.com/tailored-agentic-units/concierge/notify"
	orchestrate "github.com/tailored-agentic-units/concierge/orchestrate/config"
	"github.com/tailored-agentic-units/concierge/provider"
	"github.com/tailored-agentic-units/concierge/session"
	"github.com/tailored-agentic-units/concierge/synth"
)

// AgentsConfig locates the remote sub-agent services. An empty URL answers
// the intent with a canned reply instead.
type AgentsConfig struct {
	ProductsURL string          `json:"products_url,omitempty" yaml:"products_url,omitempty"`
	PaymentsURL string          `json:"payments_url,omitempty" yaml:"payments_url,omitempty"`
	GreetingURL string          `json:"greeting_url,omitempty" yaml:"greeting_url,omitempty"`
	Timeout     config.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

func (c *AgentsConfig) Merge(source *AgentsConfig) {
	if source.ProductsURL != "" {
		c.ProductsURL = source.ProductsURL
	}
	if source.PaymentsURL != "" {
		c.PaymentsURL = source.PaymentsURL
	}
	if source.GreetingURL != "" {
		c.GreetingURL = source.GreetingURL
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}

// TimeoutsConfig bounds each external call made while answering a request.
type TimeoutsConfig struct {
	Media      config.Duration `json:"media,omitempty" yaml:"media,omitempty"`
	Classify   config.Duration `json:"classify,omitempty" yaml:"classify,omitempty"`
	Dispatch   config.Duration `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	Synthesize config.Duration `json:"synthesize,omitempty" yaml:"synthesize,omitempty"`
	Guardrail  config.Duration `json:"guardrail,omitempty" yaml:"guardrail,omitempty"`
	Condense   config.Duration `json:"condense,omitempty" yaml:"condense,omitempty"`
}

func (c *TimeoutsConfig) Merge(source *TimeoutsConfig) {
	if source.Media > 0 {
		c.Media = source.Media
	}
	if source.Classify > 0 {
		c.Classify = source.Classify
	}
	if source.Dispatch > 0 {
		c.Dispatch = source.Dispatch
	}
	if source.Synthesize > 0 {
		c.Synthesize = source.Synthesize
	}
	if source.Guardrail > 0 {
		c.Guardrail = source.Guardrail
	}
	if source.Condense > 0 {
		c.Condense = source.Condense
	}
}

// GuardrailConfig configures the review stage. Enabled is a pointer so a
// configuration file can turn the default off.
type GuardrailConfig struct {
	Enabled  *bool               `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Model    string              `json:"model,omitempty" yaml:"model,omitempty"`
	Verdicts []guardrail.Verdict `json:"verdicts,omitempty" yaml:"verdicts,omitempty"`
}

func (c *GuardrailConfig) Merge(source *GuardrailConfig) {
	if source.Enabled != nil {
		enabled := *source.Enabled
		c.Enabled = &enabled
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if len(source.Verdicts) > 0 {
		c.Verdicts = source.Verdicts
	}
}

// IsEnabled reports the configured state, defaulting to enabled.
func (c GuardrailConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SynthConfig configures the synthesizer stage.
type SynthConfig struct {
	Mode  string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

func (c *SynthConfig) Merge(source *SynthConfig) {
	if source.Mode != "" {
		c.Mode = source.Mode
	}
	if source.Model != "" {
		c.Model = source.Model
	}
}

// Config holds initialization parameters for every engine subsystem.
// Each section delegates to that subsystem's own Config and Merge.
type Config struct {
	// Provider names the default entry of Providers.
	Provider    string                     `json:"provider,omitempty" yaml:"provider,omitempty"`
	Providers   map[string]provider.Config `json:"providers,omitempty" yaml:"providers,omitempty"`
	Model       string                     `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64                    `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// DefaultIntent receives unrecognized classifier output.
	DefaultIntent string `json:"default_intent,omitempty" yaml:"default_intent,omitempty"`

	Graph     orchestrate.GraphConfig `json:"graph" yaml:"graph"`
	Memory    memory.Config           `json:"memory" yaml:"memory"`
	Session   session.Config          `json:"session" yaml:"session"`
	Synth     SynthConfig             `json:"synth" yaml:"synth"`
	Guardrail GuardrailConfig         `json:"guardrail" yaml:"guardrail"`
	Agents    AgentsConfig            `json:"agents" yaml:"agents"`
	Timeouts  TimeoutsConfig          `json:"timeouts" yaml:"timeouts"`
	Notify    notify.Config           `json:"notify" yaml:"notify"`

	// Observer is resolved through the observability registry.
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`
	// Addr is the HTTP listen address used by the serve command.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// DefaultConfig returns a Config with defaults for all subsystems: OpenAI
// gpt-4o-mini at temperature 0, in-process memory, passthrough synthesis and
// an enabled guardrail.
func DefaultConfig() Config {
	graph := orchestrate.DefaultGraphConfig("concierge")
	graph.MaxIterations = 16
	graph.Strict = true

	openai := provider.DefaultConfig()
	ollama := provider.Config{
		Name:    provider.OllamaName,
		BaseURL: "http://localhost:11434",
		Timeout: config.Duration(60 * time.Second),
	}

	return Config{
		Provider: provider.OpenAIName,
		Providers: map[string]provider.Config{
			provider.OpenAIName: openai,
			provider.OllamaName: ollama,
		},
		Model:         "gpt-4o-mini",
		DefaultIntent: "other",
		Graph:         graph,
		Memory:        memory.DefaultConfig(),
		Session:       session.DefaultConfig(),
		Synth:         SynthConfig{Mode: string(synth.Passthrough)},
		Guardrail:     GuardrailConfig{Verdicts: guardrail.DefaultVerdicts()},
		Agents:        AgentsConfig{Timeout: config.Duration(10 * time.Second)},
		Timeouts: TimeoutsConfig{
			Media:      config.Duration(60 * time.Second),
			Classify:   config.Duration(20 * time.Second),
			Dispatch:   config.Duration(15 * time.Second),
			Synthesize: config.Duration(20 * time.Second),
			Guardrail:  config.Duration(20 * time.Second),
			Condense:   config.Duration(30 * time.Second),
		},
		Notify:   notify.DefaultConfig(),
		Observer: "slog",
		Addr:     ":8000",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method. Provider entries merge by name.
func (c *Config) Merge(source *Config) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	for name, src := range source.Providers {
		if c.Providers == nil {
			c.Providers = make(map[string]provider.Config)
		}
		cur, ok := c.Providers[name]
		if !ok {
			cur = provider.DefaultConfig()
			cur.Name = name
		}
		cur.Merge(&src)
		c.Providers[name] = cur
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.Temperature != 0 {
		c.Temperature = source.Temperature
	}
	if source.DefaultIntent != "" {
		c.DefaultIntent = source.DefaultIntent
	}

	c.Graph.Merge(&source.Graph)
	c.Memory.Merge(&source.Memory)
	c.Session.Merge(&source.Session)
	c.Synth.Merge(&source.Synth)
	c.Guardrail.Merge(&source.Guardrail)
	c.Agents.Merge(&source.Agents)
	c.Timeouts.Merge(&source.Timeouts)
	c.Notify.Merge(&source.Notify)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.Addr != "" {
		c.Addr = source.Addr
	}
}

// LoadConfig reads a JSON or YAML config file (by extension), merges it
// with defaults, and returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
