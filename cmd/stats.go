package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/campuskb/campuskb/internal/app"
	"github.com/campuskb/campuskb/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document and index counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
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

	stats, err := a.Indexer.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Printf("Documents:    %d\n", stats.TotalDocuments)
	fmt.Printf("Indexed:      %d\n", stats.IndexedDocuments)
	fmt.Printf("Not indexed:  %d\n", stats.NotIndexedDocuments)

	if len(stats.DocumentsByCategory) > 0 {
		fmt.Println("By category:")
		categories := make([]string, 0, len(stats.DocumentsByCategory))
		for category := range stats.DocumentsByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Printf("  %-12s %d\n", category, stats.DocumentsByCategory[category])
		}
	}
	return nil
}
