package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/riverbend-labs/canvas-agent/internal/config"
	"github.com/riverbend-labs/canvas-agent/internal/ingestion"
)

// buildIngestFileCmd ingests a single local file without running the HTTP
// server, for one-off backfills and local testing of the orchestrator
// against real canvas content. It reads the file as text; voice/image
// ingestion goes through the HTTP /ingest route instead, since those legs
// of the pipeline fetch their media from a URL (spec §4.6), not a local
// path.
func buildIngestFileCmd() *cobra.Command {
	var configPath, chatID, userName string

	cmd := &cobra.Command{
		Use:   "ingest-file [path]",
		Short: "Ingest a single local text file into a chat's canvas",
		Args:  cobra.ExactArgs(1),
		Example: `  canvas-agent ingest-file --config canvas-agent.yaml --chat-id chat:123 notes.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatID == "" {
				return fmt.Errorf("--chat-id is required")
			}
			return runIngestFile(cmd.Context(), configPath, chatID, userName, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "canvas-agent.yaml", "Path to the YAML config file")
	cmd.Flags().StringVar(&chatID, "chat-id", "", "Destination chat_id")
	cmd.Flags().StringVar(&userName, "user-name", "cli", "Author name recorded on the created element")
	return cmd
}

func runIngestFile(ctx context.Context, configPath, chatID, userName, path string) error {
	logger := slog.Default().With("component", "ingest-file")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	_, pipeline, err := buildAgentTree(ctx, cfg, rt, "")
	if err != nil {
		return fmt.Errorf("build agent tree: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	result, err := pipeline.Ingest(ctx, ingestion.Message{
		ChatID:    chatID,
		UserName:  userName,
		Text:      string(content),
		MediaType: ingestion.MediaText,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	logger.Info("ingested file", "path", path, "element_id", result.ElementID)
	if result.Reply != "" {
		fmt.Println(result.Reply)
	}
	return nil
}
