package config_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/concierge/orchestrate/config"
)

func TestGraphConfig_DefaultGraphConfig(t *testing.T) {
	cfg := config.DefaultGraphConfig("test-graph")

	if cfg.Name != "test-graph" {
		t.Errorf("DefaultGraphConfig().Name = %v, want %v", cfg.Name, "test-graph")
	}
	if cfg.Observer != "slog" {
		t.Errorf("DefaultGraphConfig().Observer = %v, want %v", cfg.Observer, "slog")
	}
	if cfg.MaxIterations != 1000 {
		t.Errorf("DefaultGraphConfig().MaxIterations = %v, want %v", cfg.MaxIterations, 1000)
	}
	if cfg.Strict {
		t.Error("DefaultGraphConfig().Strict should be false")
	}
}

func TestGraphConfig_JSONUnmarshalFromString(t *testing.T) {
	tests := []struct {
		name       string
		jsonStr    string
		wantName   string
		wantObs    string
		wantIter   int
		wantStrict bool
	}{
		{
			name:       "complete config",
			jsonStr:    `{"name":"conversation","observer":"slog-json","max_iterations":8,"strict":true}`,
			wantName:   "conversation",
			wantObs:    "slog-json",
			wantIter:   8,
			wantStrict: true,
		},
		{
			name:     "noop observer",
			jsonStr:  `{"name":"simple-graph","observer":"noop","max_iterations":1000}`,
			wantName: "simple-graph",
			wantObs:  "noop",
			wantIter: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config.GraphConfig
			err := json.Unmarshal([]byte(tt.jsonStr), &cfg)
			if err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}

			if cfg.Name != tt.wantName {
				t.Errorf("Name = %v, want %v", cfg.Name, tt.wantName)
			}
			if cfg.Observer != tt.wantObs {
				t.Errorf("Observer = %v, want %v", cfg.Observer, tt.wantObs)
			}
			if cfg.MaxIterations != tt.wantIter {
				t.Errorf("MaxIterations = %v, want %v", cfg.MaxIterations, tt.wantIter)
			}
			if cfg.Strict != tt.wantStrict {
				t.Errorf("Strict = %v, want %v", cfg.Strict, tt.wantStrict)
			}
		})
	}
}

func TestGraphConfig_YAML(t *testing.T) {
	var cfg config.GraphConfig
	err := yaml.Unmarshal([]byte("name: conversation\nobserver: noop\nmax_iterations: 6\nstrict: true\n"), &cfg)
	if err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	if cfg.Name != "conversation" || cfg.Observer != "noop" || cfg.MaxIterations != 6 || !cfg.Strict {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestGraphConfig_Merge(t *testing.T) {
	tests := []struct {
		name   string
		source config.GraphConfig
		want   config.GraphConfig
	}{
		{
			name:   "empty source keeps defaults",
			source: config.GraphConfig{},
			want:   config.DefaultGraphConfig("base"),
		},
		{
			name:   "overrides non-zero fields",
			source: config.GraphConfig{Observer: "noop", MaxIterations: 10, Strict: true},
			want:   config.GraphConfig{Name: "base", Observer: "noop", MaxIterations: 10, Strict: true},
		},
		{
			name:   "negative iterations ignored",
			source: config.GraphConfig{MaxIterations: -1},
			want:   config.DefaultGraphConfig("base"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultGraphConfig("base")
			cfg.Merge(&tt.source)

			if cfg != tt.want {
				t.Errorf("got %+v, want %+v", cfg, tt.want)
			}
		})
	}
}
