package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/concierge/engine"
	"github.com/tailored-agentic-units/concierge/metrics"
	"github.com/tailored-agentic-units/concierge/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and Connect endpoints",
		Long: `Starts the HTTP server. Routes:
  POST /webhook                                  JSON request, JSON reply
  POST /concierge.v1.ConversationService/Converse Connect unary procedure
  GET  /metrics                                  Prometheus exposition
  GET  /health                                   liveness and memory state`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	obs := useLogger(cmd, cfg, true, slog.LevelInfo)

	rec := metrics.New()
	e, err := engine.New(cfg, engine.WithRecorder(rec))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	e.Start()

	srv := server.New(server.Config{Addr: cfg.Addr}, e,
		server.WithRecorder(rec),
		server.WithObserver(obs),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	if eerr := e.Shutdown(shutdownCtx); eerr != nil && err == nil {
		err = eerr
	}
	return err
}
