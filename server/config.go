package server

import (
	"time"

	"github.com/tailored-agentic-units/concierge/core/config"
)

// Config holds HTTP listener parameters.
type Config struct {
	Addr            string          `json:"addr,omitempty" yaml:"addr,omitempty"`
	ReadTimeout     config.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	WriteTimeout    config.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	IdleTimeout     config.Duration `json:"idle_timeout,omitempty" yaml:"idle_timeout,omitempty"`
	ShutdownTimeout config.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
	// MaxBodyBytes bounds inbound payloads; media arrives base64 encoded.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`
}

// DefaultConfig returns listener defaults. The write timeout covers a full
// request pipeline including media conversion.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     config.Duration(30 * time.Second),
		WriteTimeout:    config.Duration(3 * time.Minute),
		IdleTimeout:     config.Duration(60 * time.Second),
		ShutdownTimeout: config.Duration(10 * time.Second),
		MaxBodyBytes:    32 << 20,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.ReadTimeout > 0 {
		c.ReadTimeout = source.ReadTimeout
	}
	if source.WriteTimeout > 0 {
		c.WriteTimeout = source.WriteTimeout
	}
	if source.IdleTimeout > 0 {
		c.IdleTimeout = source.IdleTimeout
	}
	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}
	if source.MaxBodyBytes > 0 {
		c.MaxBodyBytes = source.MaxBodyBytes
	}
}
