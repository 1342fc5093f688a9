package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/campuskb/campuskb/internal/app"
	"github.com/campuskb/campuskb/internal/config"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild every vector from the durable store",
	Long: `Re-derive and re-write the vector for every stored document. This
repairs documents left unindexed by interrupted or failed ingests and
rebuilds the index after an embedding model change.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	reindexed, err := a.Indexer.ReindexAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("reindexing: %w", err)
	}

	fmt.Printf("Reindexed %d documents\n", reindexed)
	return nil
}
