package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
	"github.com/riverbend-labs/canvas-agent/internal/config"
	"github.com/riverbend-labs/canvas-agent/internal/httpapi"
	"github.com/riverbend-labs/canvas-agent/internal/ingestion"
	"github.com/riverbend-labs/canvas-agent/internal/knowledgebase"
	"github.com/riverbend-labs/canvas-agent/internal/media"
	"github.com/riverbend-labs/canvas-agent/internal/media/transcribe"
	"github.com/riverbend-labs/canvas-agent/internal/providers"
	"github.com/riverbend-labs/canvas-agent/internal/sessions"
	"github.com/riverbend-labs/canvas-agent/internal/tools/admin"
	"github.com/riverbend-labs/canvas-agent/internal/tools/canvasops"
	"github.com/riverbend-labs/canvas-agent/internal/tools/history"
	"github.com/riverbend-labs/canvas-agent/internal/tools/knowledge"
)

// dbDriver infers the database/sql driver name from the connection URL's
// scheme. There is no explicit driver field in config.DatabaseConfig:
// "postgres://"/"postgresql://" selects lib/pq, anything else is treated as
// a modernc.org/sqlite DSN (a file path, or "file:"/"sqlite://" prefixed).
func dbDriver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func openDatabase(cfg *config.Config) (*sql.DB, string, error) {
	driver := dbDriver(cfg.Database.URL)
	dsn := cfg.Database.URL
	if driver == "sqlite" {
		dsn = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "file:")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}
	return db, driver, nil
}

// appRuntime holds every long-lived dependency that outlives a single Agent
// tree rebuild: the database handle and the store/service layer built on
// it. A hot-reload (see commands_serve.go) rebuilds the tree, Runner,
// Pipeline and httpapi.Server on top of the same runtime rather than
// reopening the database.
type appRuntime struct {
	db        *sql.DB
	canvasSvc *canvas.Service
	sessStore sessions.Store
	knowledge knowledgebase.Client
	logger    *slog.Logger
}

func buildRuntime(cfg *config.Config, logger *slog.Logger) (*appRuntime, error) {
	db, driver, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	canvasStore, err := canvas.NewSQLStore(db, driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("canvas store: %w", err)
	}
	sessStore, err := sessions.NewSQLStore(db, driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}

	var kbClient knowledgebase.Client
	if cfg.KnowledgeBase.BaseURL != "" {
		kbClient = knowledgebase.NewHTTPClient(cfg.KnowledgeBase.BaseURL)
	}

	return &appRuntime{
		db:        db,
		canvasSvc: canvas.NewService(canvasStore, logger),
		sessStore: sessStore,
		knowledge: kbClient,
		logger:    logger,
	}, nil
}

func (rt *appRuntime) Close() error {
	if rt == nil || rt.db == nil {
		return nil
	}
	return rt.db.Close()
}

// buildProvider selects the LLM provider named by cfg.LLM.DefaultProvider.
// Config validation already guarantees the matching API key is set.
func buildProvider(ctx context.Context, cfg *config.Config) (agent.Provider, error) {
	switch cfg.LLM.DefaultProvider {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			BaseURL:      cfg.LLM.Anthropic.BaseURL,
			DefaultModel: cfg.LLM.Anthropic.DefaultModel,
		})
	default:
		return providers.NewGeminiProvider(ctx, providers.GeminiConfig{
			APIKey:       cfg.LLM.Gemini.APIKey,
			DefaultModel: cfg.LLM.Gemini.DefaultModel,
		})
	}
}

// buildMediaAdapters wires the optional voice/image legs of the ingestion
// pipeline. The vision describer reuses the Gemini credentials already
// configured for the orchestrator, since spec §4.6's description prompt is
// a one-shot multimodal call rather than a Runner turn. Transcription uses
// a distinct OpenAI Whisper credential, read directly from the environment
// rather than the YAML config: it is the only component in this process
// that needs an OpenAI key, so it is not worth a config section of its own.
func buildMediaAdapters(ctx context.Context, cfg *config.Config, logger *slog.Logger) (media.Transcriber, media.Describer) {
	var describer media.Describer
	if cfg.LLM.Gemini.APIKey != "" {
		d, err := media.NewGeminiDescriber(ctx, media.GeminiDescriberConfig{APIKey: cfg.LLM.Gemini.APIKey})
		if err != nil {
			logger.Warn("vision describer unavailable", "error", err)
		} else {
			describer = d
		}
	}

	var transcriber media.Transcriber
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		t, err := transcribe.New(transcribe.Config{Provider: "openai", APIKey: key})
		if err != nil {
			logger.Warn("transcriber unavailable", "error", err)
		} else {
			transcriber = t
		}
	}
	return transcriber, describer
}

// buildAgentTree assembles the canonical tree (internal/agent.BuildCanonicalTree)
// with every tool group this process has credentials/flags for, an
// agent.Runner over it, and an ingestion.Pipeline in front of the Runner.
func buildAgentTree(ctx context.Context, cfg *config.Config, rt *appRuntime, manifestPath string) (*agent.Runner, *ingestion.Pipeline, error) {
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("llm provider: %w", err)
	}

	var adminTool agent.Tool
	if cfg.AdminTools.Enabled || admin.Enabled() {
		adminTool = admin.NewTool(cfg.AdminTools.LogPath, cfg.AdminTools.GitDir)
	}

	var searchTool, fetchDocsTool agent.Tool
	if rt.knowledge != nil {
		searchTool = knowledge.NewSearchTool(rt.knowledge)
		fetchDocsTool = knowledge.NewDocumentsTool(rt.knowledge)
	}

	defaultModel := agent.ModelHandle(cfg.LLM.Gemini.DefaultModel)
	if cfg.LLM.DefaultProvider == "anthropic" {
		defaultModel = agent.ModelHandle(cfg.LLM.Anthropic.DefaultModel)
	}

	root := agent.BuildCanonicalTree(agent.CanonicalTreeConfig{
		DefaultModel:     defaultModel,
		FetchElements:    history.NewTool(rt.canvasSvc),
		CanvasOperations: canvasops.NewTool(rt.canvasSvc),
		SearchKnowledge:  searchTool,
		FetchDocuments:   fetchDocsTool,
		AdminTools:       adminTool,
	})

	if manifestPath != "" {
		overlay, err := agent.LoadManifestOverlay(manifestPath)
		if err != nil {
			return nil, nil, fmt.Errorf("agent manifest: %w", err)
		}
		overlay.Apply(root)
	}

	runner, err := agent.NewRunner(root, provider, rt.sessStore, nil, rt.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("agent runner: %w", err)
	}

	transcriber, describer := buildMediaAdapters(ctx, cfg, rt.logger)
	pipeline := ingestion.New(ingestion.Config{
		Canvas:         rt.canvasSvc,
		Runner:         runner,
		Transcriber:    transcriber,
		Describer:      describer,
		DefaultAgentID: cfg.Session.DefaultAgentID,
		Logger:         rt.logger,
	})

	return runner, pipeline, nil
}

func buildHTTPServer(cfg *config.Config, rt *appRuntime, runner *agent.Runner, pipeline *ingestion.Pipeline) *httpapi.Server {
	return httpapi.NewServer(httpapi.Config{
		Pipeline:       pipeline,
		Runner:         runner,
		Knowledge:      rt.knowledge,
		DefaultAgentID: cfg.Session.DefaultAgentID,
		Logger:         rt.logger,
	})
}
