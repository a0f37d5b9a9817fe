package notify

import (
	"time"

	"github.com/tailored-agentic-units/concierge/core/config"
)

// Config holds dispatcher limits and side-effect sink endpoints. Empty
// endpoints disable the corresponding sink.
type Config struct {
	MaxInFlight int64           `json:"max_in_flight,omitempty" yaml:"max_in_flight,omitempty"`
	TaskTimeout config.Duration `json:"task_timeout,omitempty" yaml:"task_timeout,omitempty"`
	JoinTimeout config.Duration `json:"join_timeout,omitempty" yaml:"join_timeout,omitempty"`

	ChatwootURL       string          `json:"chatwoot_url,omitempty" yaml:"chatwoot_url,omitempty"`
	ChatwootToken     string          `json:"chatwoot_token,omitempty" yaml:"chatwoot_token,omitempty"`
	ChatwootAccountID string          `json:"chatwoot_account_id,omitempty" yaml:"chatwoot_account_id,omitempty"`
	ChatwootTimeout   config.Duration `json:"chatwoot_timeout,omitempty" yaml:"chatwoot_timeout,omitempty"`

	WebhookURL     string          `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	WebhookTimeout config.Duration `json:"webhook_timeout,omitempty" yaml:"webhook_timeout,omitempty"`
}

// DefaultConfig returns the default side-effect configuration with both
// sinks disabled.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:       64,
		TaskTimeout:       config.Duration(15 * time.Second),
		JoinTimeout:       config.Duration(2 * time.Second),
		ChatwootAccountID: "1",
		ChatwootTimeout:   config.Duration(5 * time.Second),
		WebhookTimeout:    config.Duration(10 * time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxInFlight > 0 {
		c.MaxInFlight = source.MaxInFlight
	}
	if source.TaskTimeout > 0 {
		c.TaskTimeout = source.TaskTimeout
	}
	if source.JoinTimeout > 0 {
		c.JoinTimeout = source.JoinTimeout
	}
	if source.ChatwootURL != "" {
		c.ChatwootURL = source.ChatwootURL
	}
	if source.ChatwootToken != "" {
		c.ChatwootToken = source.ChatwootToken
	}
	if source.ChatwootAccountID != "" {
		c.ChatwootAccountID = source.ChatwootAccountID
	}
	if source.ChatwootTimeout > 0 {
		c.ChatwootTimeout = source.ChatwootTimeout
	}
	if source.WebhookURL != "" {
		c.WebhookURL = source.WebhookURL
	}
	if source.WebhookTimeout > 0 {
		c.WebhookTimeout = source.WebhookTimeout
	}
}
