// Command canvas-agent runs the multi-agent conversational runtime and
// Canvas Store described by this repository: an HTTP ingestion surface in
// front of a fixed tree of LLM-backed agents, all state persisted to a
// Canvas (frames, elements) and a per-chat session event log.
//
// Start the server:
//
//	canvas-agent serve --config canvas-agent.yaml
//
// Import legacy flat messages into the Canvas Store:
//
//	canvas-agent migrate --legacy-dsn postgres://... --chat-id chat:123
//
// Ingest a single local file without running the server:
//
//	canvas-agent ingest-file --config canvas-agent.yaml --chat-id chat:123 path/to/file
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is populated by ldflags during build, matching the teacher's
// build-info convention.
var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main so tests can exercise it without os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "canvas-agent",
		Short:        "Canvas Agent - multi-agent conversational runtime over a shared Canvas Store",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildIngestFileCmd(),
	)
	return rootCmd
}
