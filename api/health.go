package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/retrieval"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pool      *pgxpool.Pool
	retriever *retrieval.Retriever
	logger    log.Logger
}

// ReadyResponse reports readiness and the state of the knowledge base. An
// empty knowledge base still serves queries (fallback answers flagged for
// human review), so it is reported rather than failed.
type ReadyResponse struct {
	Status        string `json:"status"`
	KnowledgeBase string `json:"knowledgeBase"`
}

// NewHealthHandler creates a new health handler.
// pool is the database connection pool used for readiness checks; retriever
// reports whether any documents are indexed.
func NewHealthHandler(pool *pgxpool.Pool, retriever *retrieval.Retriever, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, retriever: retriever, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Performs an actual health check by pinging the database, then reports
// whether the knowledge base holds any indexed documents.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}

	kb := "empty"
	if h.retriever != nil && h.retriever.Ready(r.Context()) {
		kb = "populated"
	}
	writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", KnowledgeBase: kb})
}
