package api

import (
	"encoding/json"
	"net/http"

	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/pipeline"
)

// MaxIngestURLs bounds one ingest batch. The batch is scraped synchronously
// within the request, so the cap keeps response times sane.
const MaxIngestURLs = 50

// IngestHandler handles batch ingestion and reindexing.
type IngestHandler struct {
	loader  *pipeline.Loader
	indexer *ingest.Indexer
	logger  log.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(loader *pipeline.Loader, indexer *ingest.Indexer, logger log.Logger) *IngestHandler {
	return &IngestHandler{loader: loader, indexer: indexer, logger: logger}
}

// RegisterRoutes registers ingest routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ingest", h.ingest)
	mux.HandleFunc("POST /api/v1/reindex", h.reindex)
}

// IngestRequest is the request body for a batch ingest.
type IngestRequest struct {
	URLs []string `json:"urls"`
}

// ingest scrapes, chunks, and indexes the requested URLs, returning the
// per-stage load statistics.
func (h *IngestHandler) ingest(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		h.logger.Error("loader is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "urls is required")
		return
	}
	if len(req.URLs) > MaxIngestURLs {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "too many urls (max 50 per batch)")
		return
	}

	stats := h.loader.LoadFromURLs(r.Context(), req.URLs)
	writeJSON(w, http.StatusOK, stats)
}

// reindex rebuilds the vector for every durable document, repairing rows
// whose vector write previously failed.
func (h *IngestHandler) reindex(w http.ResponseWriter, r *http.Request) {
	if h.indexer == nil {
		h.logger.Error("indexer is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	reindexed, err := h.indexer.ReindexAll(r.Context())
	if err != nil {
		h.logger.Error("reindex failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "reindex_failed", "failed to reindex documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reindexed": reindexed})
}
