// Package api provides the HTTP REST API for CampusKB.
//
// This package exposes the knowledge base over HTTP for the chat frontend
// and for operational tooling.
//
// Endpoints:
//
//	GET    /health                  →  liveness probe
//	GET    /ready                   →  readiness probe (database ping, index state)
//	POST   /api/v1/query            →  answer a question against the index
//	POST   /api/v1/ingest           →  scrape, chunk, and index URLs
//	POST   /api/v1/reindex          →  rebuild every vector from durable rows
//	GET    /api/v1/documents        →  browse documents by category
//	DELETE /api/v1/documents/{id}   →  remove one document and its vector
//	GET    /api/v1/stats            →  store and index counts
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery, CORS)
//   - health.go: health check endpoints (/health, /ready)
//   - query.go: query endpoint
//   - ingest.go: ingest and reindex endpoints
//   - documents.go: document browse, delete, and stats endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/pipeline"
	"github.com/campuskb/campuskb/internal/retrieval"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Batch
	// ingests scrape synchronously, so this is generous.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for CampusKB's REST API.
type Server struct {
	mux         *http.ServeMux
	corsOrigins []string

	health    *HealthHandler
	query     *QueryHandler
	ingest    *IngestHandler
	documents *DocumentHandler
}

// NewServer creates a new HTTP server with all routes registered.
// corsOrigins lists the origins allowed to call the API from a browser;
// empty disables CORS headers entirely.
func NewServer(pool *pgxpool.Pool, service *pipeline.Service, loader *pipeline.Loader, indexer *ingest.Indexer, retriever *retrieval.Retriever, corsOrigins []string, logger log.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:         mux,
		corsOrigins: corsOrigins,
		health:      NewHealthHandler(pool, retriever, logger),
		query:       NewQueryHandler(service, logger),
		ingest:      NewIngestHandler(loader, indexer, logger),
		documents:   NewDocumentHandler(indexer, retriever, logger),
	}

	s.health.RegisterRoutes(mux)
	s.query.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request ID → logging → CORS → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, requestIDMiddleware, loggingMiddleware, corsMiddleware(s.corsOrigins))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
