package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/campuskb/campuskb/db"
	"github.com/campuskb/campuskb/internal/chunk"
	"github.com/campuskb/campuskb/internal/config"
	"github.com/campuskb/campuskb/internal/embedding/openai"
	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/pipeline"
	"github.com/campuskb/campuskb/internal/prompt"
	"github.com/campuskb/campuskb/internal/retrieval"
	"github.com/campuskb/campuskb/internal/scrape"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	logger := slog.Default()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	embedder, err := openai.NewClient(openai.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	a.Embedder = embedder

	a.Store = knowledge.NewStore(knowledge.NewPGQuerier(pool), logger)
	a.Vectors = knowledge.NewPGVectorIndex(pool, embedder, logger)
	a.Indexer = ingest.NewIndexer(a.Store, a.Vectors, logger)

	a.Scraper = provideScraper(cfg, logger)

	splitter := chunk.NewSplitter(chunk.Limits{
		Target:  cfg.Chunking.TargetSize,
		Max:     cfg.Chunking.MaxSize,
		Min:     cfg.Chunking.MinSize,
		Overlap: cfg.Chunking.Overlap,
	}, logger)
	a.Loader = pipeline.NewLoader(a.Scraper, splitter, a.Indexer, logger)

	a.Retriever = retrieval.NewRetriever(a.Vectors, a.Store,
		time.Duration(cfg.Retrieval.TimeoutMS)*time.Millisecond,
		cfg.Retrieval.MinSimilarity, logger)

	prompts, err := providePrompts(cfg)
	if err != nil {
		return nil, err
	}
	a.Prompts = prompts

	// Answer generation is external; without a completion backend the
	// service returns retrieval-grounded answers flagged for human review.
	a.Service = pipeline.NewService(a.Retriever, prompts, nil, cfg.Retrieval.TopK, logger)

	return a, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideScraper builds the batch scraper from the scraper configuration.
// delay_ms is the per-host politeness interval; zero delay means unlimited.
func provideScraper(cfg *config.Config, logger *slog.Logger) *scrape.Scraper {
	extractor := scrape.NewExtractor(scrape.ExtractorConfig{
		UserAgent:         cfg.Scraper.UserAgent,
		Timeout:           time.Duration(cfg.Scraper.TimeoutMS) * time.Millisecond,
		MaxResponseBytes:  cfg.Scraper.MaxResponseBytes,
		AllowPrivateHosts: cfg.Scraper.AllowPrivateHosts,
	}, logger)

	perHost := rate.Inf
	if cfg.Scraper.DelayMS > 0 {
		perHost = rate.Every(time.Duration(cfg.Scraper.DelayMS) * time.Millisecond)
	}
	return scrape.NewScraper(extractor, cfg.Scraper.Parallelism, perHost, logger)
}

// providePrompts loads prompt templates, preferring the configured override
// directory over the built-ins.
func providePrompts(cfg *config.Config) (prompt.Snapshot, error) {
	if cfg.PromptDir == "" {
		return prompt.Default(), nil
	}
	snap, err := prompt.LoadDir(os.DirFS(cfg.PromptDir))
	if err != nil {
		return prompt.Snapshot{}, fmt.Errorf("loading prompt templates from %s: %w", cfg.PromptDir, err)
	}
	return snap, nil
}
