// Package httpapi implements the thin external HTTP surface spec §6 names:
// POST /ingest, /summarize, /ask, /chat/message, and GET / for health. None
// of these are part of the hard engineering core (the Agent Orchestration
// Runtime and Canvas Store); they are enumerated for completeness and exist
// to give the ingestion pipeline and orchestrator an externally callable
// entry point without a chat-platform adapter.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/ingestion"
	"github.com/riverbend-labs/canvas-agent/internal/knowledgebase"
)

// Server hosts the HTTP API over a Pipeline/Runner/knowledgebase.Client.
type Server struct {
	pipeline     *ingestion.Pipeline
	runner       *agent.Runner
	knowledge    knowledgebase.Client
	metrics      *Metrics
	logger       *slog.Logger
	defaultAgent string
	httpServer   *http.Server
	httpListener net.Listener
}

// Config configures a Server.
type Config struct {
	Pipeline       *ingestion.Pipeline
	Runner         *agent.Runner
	Knowledge      knowledgebase.Client
	DefaultAgentID string
	Logger         *slog.Logger
}

// NewServer builds a Server. Knowledge may be nil: /summarize and /ask then
// answer with the orchestrator alone, with no retrieved sources.
func NewServer(cfg Config) *Server {
	if cfg.DefaultAgentID == "" {
		cfg.DefaultAgentID = "orchestrator"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		pipeline:     cfg.Pipeline,
		runner:       cfg.Runner,
		knowledge:    cfg.Knowledge,
		metrics:      NewMetrics(),
		logger:       cfg.Logger.With("component", "httpapi"),
		defaultAgent: cfg.DefaultAgentID,
	}
}

// Mux builds the request router.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleHealthz)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /chat/message", s.handleChatMessage)
	return mux
}

// ListenAndServe starts the HTTP server on addr and blocks until ctx is
// cancelled or the server errors.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	s.httpListener = listener

	s.httpServer = &http.Server{
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("httpapi: encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
