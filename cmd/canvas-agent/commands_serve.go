package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/riverbend-labs/canvas-agent/internal/config"
	"github.com/riverbend-labs/canvas-agent/internal/sessions"
)

func buildServeCmd() *cobra.Command {
	var configPath string
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion surface and agent orchestrator",
		Example: `  canvas-agent serve --config canvas-agent.yaml
  canvas-agent serve --config canvas-agent.yaml --agents-manifest AGENTS.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, manifestPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "canvas-agent.yaml", "Path to the YAML config file")
	cmd.Flags().StringVar(&manifestPath, "agents-manifest", "", "Optional path to an agent instruction/description overlay, hot-reloaded while running")
	return cmd
}

// reloadableHandler lets ListenAndServe's http.Server keep a stable
// Handler value while the handler it delegates to is swapped out from
// under it on manifest reload, without taking the server down.
type reloadableHandler struct {
	current atomic.Pointer[http.Handler]
}

func (h *reloadableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := h.current.Load()
	if handler == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	(*handler).ServeHTTP(w, r)
}

func (h *reloadableHandler) set(mux http.Handler) {
	h.current.Store(&mux)
}

func runServe(ctx context.Context, configPath, manifestPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Logging.Level))
	var logHandler slog.Handler
	if cfg.Logging.Format == "text" {
		logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		logHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(logHandler)

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	sweeper := sessions.NewSweeper(rt.sessStore, sessions.RetentionPolicy{
		MaxEventsPerSession: cfg.Session.MaxEventsPerSession,
		Schedule:            cfg.Session.RetentionSchedule,
	}, logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start retention sweeper: %w", err)
	}
	defer sweeper.Stop()

	handler := &reloadableHandler{}
	if err := reload(ctx, cfg, rt, manifestPath, handler); err != nil {
		return fmt.Errorf("build agent tree: %w", err)
	}

	if manifestPath != "" {
		watcher, err := startManifestWatcher(ctx, cfg, rt, manifestPath, handler, logger)
		if err != nil {
			logger.Warn("agent manifest hot-reload unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	logger.Info("canvas-agent serving", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// reload rebuilds the agent tree, Runner, ingestion Pipeline and HTTP mux
// on top of the long-lived runtime rt, then swaps them into handler
// atomically. This is the whole of what a manifest change triggers: no
// in-place mutation of a live Agent tree, per the invariant manifest.go
// documents.
func reload(ctx context.Context, cfg *config.Config, rt *appRuntime, manifestPath string, handler *reloadableHandler) error {
	runner, pipeline, err := buildAgentTree(ctx, cfg, rt, manifestPath)
	if err != nil {
		return err
	}
	server := buildHTTPServer(cfg, rt, runner, pipeline)
	handler.set(server.Mux())
	return nil
}

// startManifestWatcher watches manifestPath's directory (so edits that
// replace the file via rename, as most editors do, are still seen) and
// triggers reload on a short debounce, following the teacher's
// internal/templates.Registry watch+debounce shape.
func startManifestWatcher(ctx context.Context, cfg *config.Config, rt *appRuntime, manifestPath string, handler *reloadableHandler, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := parentDir(manifestPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, func() {
					logger.Info("agent manifest changed, reloading", "path", manifestPath)
					if err := reload(ctx, cfg, rt, manifestPath, handler); err != nil {
						logger.Error("agent manifest reload failed, keeping previous tree", "error", err)
					}
				})
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("manifest watcher error", "error", watchErr)
			}
		}
	}()

	return watcher, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
