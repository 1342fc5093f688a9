// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the storage, embedding, scraping, and
// query components from configuration. Commands construct an App via Setup
// and call Close to release resources.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuskb/campuskb/internal/config"
	"github.com/campuskb/campuskb/internal/embedding"
	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/pipeline"
	"github.com/campuskb/campuskb/internal/prompt"
	"github.com/campuskb/campuskb/internal/retrieval"
	"github.com/campuskb/campuskb/internal/scrape"
)

// App is the core application container.
type App struct {
	Config *config.Config

	DBPool   *pgxpool.Pool
	Store    *knowledge.Store
	Vectors  knowledge.VectorIndex
	Embedder embedding.Embedder

	Indexer   *ingest.Indexer
	Retriever *retrieval.Retriever
	Scraper   *scrape.Scraper
	Loader    *pipeline.Loader
	Service   *pipeline.Service
	Prompts   prompt.Snapshot
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		slog.Info("database pool closed")
	}
	return nil
}
