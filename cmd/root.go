// Package cmd implements the campuskb command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/campuskb/campuskb/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "campuskb",
	Short: "CampusKB - university knowledge base ingestion and retrieval",
	Long: `CampusKB scrapes university web pages into a deduplicated, vector-indexed
knowledge base and answers questions against it with confidence scoring.

Commands:
  serve    Start the HTTP API server
  ingest   Scrape, chunk, and index one or more URLs
  reindex  Rebuild every vector from the durable store
  stats    Show document and index counts`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogger)
}

// initLogger configures the process-wide default logger.
// Log level is controlled by the DEBUG environment variable.
func initLogger() {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	slog.SetDefault(log.New(cfg))
}
