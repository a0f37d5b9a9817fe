package commands

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/concierge/engine"
	"github.com/tailored-agentic-units/concierge/server"
)

type converseFunc func(ctx context.Context, req engine.Request) (*engine.Reply, error)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Sends one message, or starts an interactive session when no message
is given. Messages are handled in-process unless --server points at a
running concierge.

Examples:
  concierge chat "Hola"
  concierge chat --file nota.ogg
  concierge chat --server http://localhost:8000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	flags := cmd.Flags()
	flags.StringP("session", "s", "", "session id (default: random)")
	flags.String("server", "", "base URL of a running concierge server")
	flags.String("file", "", "send an audio or image file instead of text")
	flags.Bool("no-guardrail", false, "skip the reply review for these messages")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	converse, closeFn, err := chatBackend(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = "cli-" + uuid.NewString()
	}
	noGuardrail, _ := cmd.Flags().GetBool("no-guardrail")
	base := engine.Request{SessionID: sessionID, DisableGuardrail: noGuardrail}

	out := cmd.OutOrStdout()

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		req, err := fileRequest(base, path)
		if err != nil {
			return err
		}
		return send(ctx, out, converse, req)
	}

	if len(args) > 0 {
		req := base
		req.Text = args[0]
		return send(ctx, out, converse, req)
	}

	fmt.Fprintf(out, "session %s (exit to quit)\n", sessionID)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit", "salir":
			return nil
		}

		req := base
		req.Text = line
		if err := send(ctx, out, converse, req); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// chatBackend returns a remote Connect client when --server is set and an
// in-process engine otherwise.
func chatBackend(cmd *cobra.Command) (converseFunc, func(), error) {
	if url, _ := cmd.Flags().GetString("server"); url != "" {
		client := server.NewClient(http.DefaultClient, strings.TrimRight(url, "/"))
		converse := func(ctx context.Context, req engine.Request) (*engine.Reply, error) {
			resp, err := client.CallUnary(ctx, connect.NewRequest(&req))
			if err != nil {
				return nil, err
			}
			return resp.Msg, nil
		}
		return converse, func() {}, nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	useLogger(cmd, cfg, false, slog.LevelWarn)

	e, err := engine.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}
	e.Start()

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		e.Shutdown(ctx)
	}
	return e.Handle, closeFn, nil
}

func send(ctx context.Context, out io.Writer, converse converseFunc, req engine.Request) error {
	start := time.Now()
	reply, err := converse(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] %s\n", reply.Intent, reply.Reply)
	if reply.ErrorKind != "" {
		fmt.Fprintf(out, "  (%s error after %s)\n", reply.ErrorKind, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func fileRequest(base engine.Request, path string) (engine.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Request{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	contentType, _, _ := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(path)))
	if contentType == "" {
		return engine.Request{}, fmt.Errorf("unknown content type for %s", path)
	}

	req := base
	req.Text = base64.StdEncoding.EncodeToString(data)
	req.ContentType = contentType
	req.Filename = filepath.Base(path)
	return req, nil
}
