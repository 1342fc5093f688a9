// Package pipeline wires the scrape, chunk, ingest, retrieval, prompt, and
// confidence components into the two end-to-end flows: batch loading of
// source URLs and per-query answering.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/campuskb/campuskb/internal/chunk"
	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/scrape"
)

// LoadStats summarizes one batch load.
type LoadStats struct {
	URLsRequested    int           `json:"urlsRequested"`
	URLsScraped      int           `json:"urlsScraped"`
	ChunksCreated    int           `json:"chunksCreated"`
	DocumentsIndexed int           `json:"documentsIndexed"`
	Duration         time.Duration `json:"-"`
}

// MarshalJSON reports the duration as whole milliseconds under durationMs;
// a raw time.Duration would serialize as nanoseconds.
func (s LoadStats) MarshalJSON() ([]byte, error) {
	type loadStatsJSON LoadStats
	return json.Marshal(struct {
		loadStatsJSON
		DurationMS int64 `json:"durationMs"`
	}{loadStatsJSON(s), s.Duration.Milliseconds()})
}

// SuccessRate is the percentage of requested URLs that were scraped.
func (s LoadStats) SuccessRate() float64 {
	if s.URLsRequested == 0 {
		return 0
	}
	return float64(s.URLsScraped) * 100 / float64(s.URLsRequested)
}

// IndexingRate is the percentage of created chunks that were indexed.
func (s LoadStats) IndexingRate() float64 {
	if s.ChunksCreated == 0 {
		return 0
	}
	return float64(s.DocumentsIndexed) * 100 / float64(s.ChunksCreated)
}

// Loader runs the ingestion path: scrape, chunk, index.
type Loader struct {
	scraper  *scrape.Scraper
	splitter *chunk.Splitter
	indexer  *ingest.Indexer
	logger   *slog.Logger
}

// NewLoader creates a Loader. A nil logger falls back to slog.Default().
func NewLoader(scraper *scrape.Scraper, splitter *chunk.Splitter, indexer *ingest.Indexer, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{scraper: scraper, splitter: splitter, indexer: indexer, logger: logger}
}

// LoadFromURLs scrapes, chunks, and indexes every URL. Per-URL and
// per-chunk failures are isolated; the returned stats report how far each
// stage got.
func (l *Loader) LoadFromURLs(ctx context.Context, urls []string) LoadStats {
	start := time.Now()
	stats := LoadStats{URLsRequested: len(urls)}

	l.logger.Info("loading knowledge base", "urls", len(urls))

	pages, batch := l.scraper.ScrapeAll(ctx, urls)
	stats.URLsScraped = batch.Succeeded
	if len(pages) == 0 {
		stats.Duration = time.Since(start)
		l.logger.Warn("no content scraped", "requested", stats.URLsRequested)
		return stats
	}

	for _, page := range pages {
		chunks := l.splitter.Split(page.Content, page.Title)
		stats.ChunksCreated += len(chunks)
		stats.DocumentsIndexed += l.indexer.IngestBatch(ctx, chunks, page.Category, page.URL)
	}

	stats.Duration = time.Since(start)
	l.logger.Info("load complete",
		"requested", stats.URLsRequested,
		"scraped", stats.URLsScraped,
		"chunks", stats.ChunksCreated,
		"indexed", stats.DocumentsIndexed,
		"duration", stats.Duration)
	return stats
}
