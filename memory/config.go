package memory

import (
	"fmt"
	"time"

	"github.com/tailored-agentic-units/concierge/core/config"
)

// Backend names accepted by Config.Backend.
const (
	BackendLocal  = "local"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds memory store initialization parameters.
type Config struct {
	Backend       string          `json:"backend,omitempty" yaml:"backend,omitempty"`
	URL           string          `json:"url,omitempty" yaml:"url,omitempty"`   // redis connection URL
	Path          string          `json:"path,omitempty" yaml:"path,omitempty"` // sqlite database or file store root
	Prefix        string          `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL           config.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	ProbeSchedule string          `json:"probe_schedule,omitempty" yaml:"probe_schedule,omitempty"`
	ProbeTimeout  config.Duration `json:"probe_timeout,omitempty" yaml:"probe_timeout,omitempty"`
}

// DefaultConfig returns the default memory configuration: in-process
// storage, probed every 30 seconds when a persistent backend is configured.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendLocal,
		URL:           "redis://localhost:6379/0",
		Prefix:        "concierge",
		ProbeSchedule: "@every 30s",
		ProbeTimeout:  config.Duration(2 * time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.URL != "" {
		c.URL = source.URL
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
	if source.TTL > 0 {
		c.TTL = source.TTL
	}
	if source.ProbeSchedule != "" {
		c.ProbeSchedule = source.ProbeSchedule
	}
	if source.ProbeTimeout > 0 {
		c.ProbeTimeout = source.ProbeTimeout
	}
}

// NewStore creates the backend named by cfg.Backend. Configuration
// mistakes (unknown backend, missing path, malformed URL) are returned as
// errors; an unreachable redis server is not, since the client connects
// lazily and Resilient absorbs the failure.
func NewStore(cfg *Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocalStore(), nil
	case BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileStore(cfg.Path), nil
	case BackendRedis:
		return DialRedis(cfg.URL, cfg.Prefix, cfg.TTL.Std())
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
