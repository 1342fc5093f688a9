package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/retrieval"
)

// Document listing bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// DocumentHandler handles document browse, delete, and stats endpoints.
type DocumentHandler struct {
	indexer   *ingest.Indexer
	retriever *retrieval.Retriever
	logger    log.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(indexer *ingest.Indexer, retriever *retrieval.Retriever, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{indexer: indexer, retriever: retriever, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/documents", h.list)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.delete)
	mux.HandleFunc("GET /api/v1/stats", h.stats)
}

// DocumentResponse is the JSON shape of one document.
type DocumentResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Category  string            `json:"category"`
	Source    string            `json:"source,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Indexed   bool              `json:"indexed"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func toDocumentResponse(doc knowledge.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		Category:  doc.Category.String(),
		Source:    doc.Source,
		Metadata:  doc.Metadata,
		Indexed:   doc.Indexed,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// list browses documents by category, or by content substring when q is
// given. Query parameters:
//   - category: category name (e.g. TUITION)
//   - q: content search term, used when category is absent
//   - limit: maximum number of documents to return (default: 100, max: 1000)
func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.retriever == nil {
		h.logger.Error("retriever is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)

	var (
		docs []knowledge.Document
		err  error
	)
	switch {
	case r.URL.Query().Get("category") != "":
		name := r.URL.Query().Get("category")
		category, ok := knowledge.ParseCategory(name)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unknown category: "+name)
			return
		}
		// #nosec G115 -- limit is bounded by MaxListLimit (1000)
		docs, err = h.retriever.ByCategory(r.Context(), category, int32(limit))
	case r.URL.Query().Get("q") != "":
		// #nosec G115 -- limit is bounded by MaxListLimit (1000)
		docs, err = h.retriever.SearchContent(r.Context(), r.URL.Query().Get("q"), int32(limit))
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_request", "category or q is required")
		return
	}
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		writeError(w, r, http.StatusInternalServerError, "list_failed", "failed to list documents")
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": out,
		"total":     len(out),
		"limit":     limit,
	})
}

// delete removes one document and its vector.
func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request) {
	if h.indexer == nil {
		h.logger.Error("indexer is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	id := r.PathValue("id")
	if err := h.indexer.Delete(r.Context(), id); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "document not found")
			return
		}
		h.logger.Error("failed to delete document", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "delete_failed", "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stats reports store and index counts.
func (h *DocumentHandler) stats(w http.ResponseWriter, r *http.Request) {
	if h.indexer == nil {
		h.logger.Error("indexer is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	stats, err := h.indexer.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read stats", "error", err)
		writeError(w, r, http.StatusInternalServerError, "stats_failed", "failed to read stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
