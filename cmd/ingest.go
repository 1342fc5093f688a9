package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/campuskb/campuskb/internal/app"
	"github.com/campuskb/campuskb/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>...",
	Short: "Scrape, chunk, and index one or more URLs",
	Long: `Fetch each URL, extract its main content, split it into overlapping
chunks, and index every chunk that is not already present. Identical content
is deduplicated by checksum, so re-running an ingest is safe.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	stats := a.Loader.LoadFromURLs(cmd.Context(), args)

	fmt.Printf("URLs:     %d requested, %d scraped (%.0f%%)\n",
		stats.URLsRequested, stats.URLsScraped, stats.SuccessRate())
	fmt.Printf("Chunks:   %d created, %d indexed (%.0f%%)\n",
		stats.ChunksCreated, stats.DocumentsIndexed, stats.IndexingRate())
	fmt.Printf("Duration: %s\n", stats.Duration.Round(1e6))

	if stats.URLsScraped == 0 {
		return fmt.Errorf("no content scraped from %d URLs", stats.URLsRequested)
	}
	return nil
}
