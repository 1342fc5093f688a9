package api

import (
	"encoding/json"
	"net/http"

	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/pipeline"
)

// MaxQuestionLength bounds a single question.
const MaxQuestionLength = 2000

// QueryHandler handles the question-answering endpoint.
type QueryHandler struct {
	service *pipeline.Service
	logger  log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(service *pipeline.Service, logger log.Logger) *QueryHandler {
	return &QueryHandler{service: service, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query", h.query)
}

// QueryRequest is the request body for a question. Category is optional;
// when omitted the service detects one from the question.
type QueryRequest struct {
	Question string `json:"question"`
	Category string `json:"category,omitempty"`
}

// query answers one question against the knowledge base.
func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.logger.Error("query service is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "question too long (max 2000 characters)")
		return
	}

	var category *knowledge.Category
	if req.Category != "" {
		parsed, ok := knowledge.ParseCategory(req.Category)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unknown category: "+req.Category)
			return
		}
		category = &parsed
	}

	answer := h.service.Query(r.Context(), req.Question, category)
	writeJSON(w, http.StatusOK, answer)
}
