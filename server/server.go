// Package server exposes the engine over HTTP: a JSON webhook, a Connect
// unary procedure, Prometheus exposition, and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/concierge/engine"
	"github.com/tailored-agentic-units/concierge/metrics"
	"github.com/tailored-agentic-units/concierge/observability"
)

// ConverseProcedure is the Connect procedure answering one message.
const ConverseProcedure = "/concierge.v1.ConversationService/Converse"

// Route paths served next to the Connect procedure.
const (
	WebhookPath = "/webhook"
	MetricsPath = "/metrics"
	HealthPath  = "/health"
)

// Option configures a Server.
type Option func(*Server)

// WithRecorder enables request metrics and the /metrics route.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithObserver sets the observer for listener and request failure events.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// Server is the HTTP boundary of the engine.
type Server struct {
	cfg        Config
	engine     *engine.Engine
	recorder   *metrics.Recorder
	observer   observability.Observer
	httpServer *http.Server
	started    time.Time
}

// HealthResponse is the body served at /health.
type HealthResponse struct {
	OK             bool   `json:"ok"`
	MemoryDegraded bool   `json:"memory_degraded"`
	Uptime         string `json:"uptime"`
}

// ErrorResponse is the body of a rejected webhook request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New builds a Server for e. Zero fields in cfg take DefaultConfig values.
func New(cfg Config, e *engine.Engine, opts ...Option) *Server {
	merged := DefaultConfig()
	merged.Merge(&cfg)

	s := &Server{
		cfg:      merged,
		engine:   e,
		observer: observability.NoOpObserver{},
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:         merged.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  merged.ReadTimeout.Std(),
		WriteTimeout: merged.WriteTimeout.Std(),
		IdleTimeout:  merged.IdleTimeout.Std(),
	}
	return s
}

// Handler returns the routed handler without a listener, for embedding and
// tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	converse := connect.NewUnaryHandler(ConverseProcedure, s.converse, connect.WithCodec(JSONCodec{}))

	s.route(mux, WebhookPath, http.HandlerFunc(s.webhook))
	s.route(mux, ConverseProcedure, converse)
	s.route(mux, HealthPath, http.HandlerFunc(s.health))
	if s.recorder != nil {
		mux.Handle(MetricsPath, s.recorder.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, path string, h http.Handler) {
	if s.recorder != nil {
		h = s.recorder.Middleware(path, h)
	}
	mux.Handle(path, h)
}

// ListenAndServe accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.observer.OnEvent(context.Background(), observability.NewEvent(EventListening, observability.LevelInfo, "server.Server", map[string]any{
		"addr": ln.Addr().String(),
	}))

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx and the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout.Std())
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.observer.OnEvent(ctx, observability.NewEvent(EventStopped, observability.LevelInfo, "server.Server", nil))
	return err
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	var req engine.Request
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	reply, err := s.engine.Handle(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if isRequestError(err) {
			status = http.StatusBadRequest
		}
		s.requestFailed(r.Context(), WebhookPath, req.SessionID, err)
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) converse(ctx context.Context, req *connect.Request[engine.Request]) (*connect.Response[engine.Reply], error) {
	reply, err := s.engine.Handle(ctx, *req.Msg)
	if err != nil {
		s.requestFailed(ctx, ConverseProcedure, req.Msg.SessionID, err)
		if isRequestError(err) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(reply), nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		OK:             true,
		MemoryDegraded: s.engine.Degraded(),
		Uptime:         time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) requestFailed(ctx context.Context, route, sessionID string, err error) {
	s.observer.OnEvent(ctx, observability.NewEvent(EventRequestFailed, observability.LevelWarning, "server.Server", map[string]any{
		"route":      route,
		"session_id": sessionID,
		"error":      err.Error(),
	}))
}

func isRequestError(err error) bool {
	var pce *engine.ProviderConfigurationError
	return errors.Is(err, engine.ErrEmptySessionID) ||
		errors.Is(err, engine.ErrEmptyText) ||
		errors.As(err, &pce)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
