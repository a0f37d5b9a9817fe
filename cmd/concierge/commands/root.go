// Package commands implements the concierge CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/concierge/engine"
	"github.com/tailored-agentic-units/concierge/observability"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "concierge",
		Short: "Conversational storefront assistant",
		Long: `concierge answers storefront chat messages: it classifies each
message, routes it to a domain agent, reviews the reply, and keeps a
summarized conversation history per session.

Examples:
  concierge serve --addr :8000
  concierge chat "Hola"
  concierge chat --server http://localhost:8000`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newChatCmd(),
	)

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "path to a JSON or YAML config file")
	flags.StringSlice("env-file", []string{".env.local", ".env"}, "environment files, earlier files take precedence")
	flags.String("provider", "", "default model provider (overrides config)")
	flags.String("model", "", "default model name (overrides config)")
	flags.String("memory", "", "memory backend: local, file, redis, sqlite (overrides config)")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	return root
}

// loadConfig resolves configuration in order: defaults, config file,
// environment, flags.
func loadConfig(cmd *cobra.Command) (*engine.Config, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	if err := engine.LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	var cfg *engine.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := engine.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		defaults := engine.DefaultConfig()
		cfg = &defaults
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := cmd.Flags().GetString("memory"); v != "" {
		cfg.Memory.Backend = v
	}
	return cfg, nil
}

// useLogger registers a slog observer writing to stderr at level, or debug
// with --verbose, and points cfg at it. An explicitly configured non-logging observer such as "noop" is kept.
func useLogger(cmd *cobra.Command, cfg *engine.Config, json bool, level slog.Level) observability.Observer {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	obs := observability.NewSlogObserver(slog.New(handler))
	if cfg.Observer == "slog" || cfg.Observer == "slog-json" {
		observability.RegisterObserver("concierge", obs)
		cfg.Observer = "concierge"
	}
	return obs
}
