package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskb/campuskb/internal/chunk"
	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/pipeline"
	"github.com/campuskb/campuskb/internal/prompt"
	"github.com/campuskb/campuskb/internal/retrieval"
	"github.com/campuskb/campuskb/internal/scrape"
	"github.com/campuskb/campuskb/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := log.NewNop()

	vectors := testutil.NewVectorIndex()
	store := knowledge.NewStore(testutil.NewQuerier(), logger)
	indexer := ingest.NewIndexer(store, vectors, logger)
	retriever := retrieval.NewRetriever(vectors, store, 0, 0, logger)
	service := pipeline.NewService(retriever, prompt.Default(), nil, 0, logger)

	extractor := scrape.NewExtractor(scrape.ExtractorConfig{AllowPrivateHosts: true}, logger)
	scraper := scrape.NewScraper(extractor, 1, 0, logger)
	loader := pipeline.NewLoader(scraper, chunk.NewSplitter(chunk.DefaultLimits(), logger), indexer, logger)

	return NewServer(nil, service, loader, indexer, retriever, []string{"*"}, logger)
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"liveness", http.MethodGet, "/health", http.StatusOK},
		{"readiness without pool", http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{"query requires body", http.MethodPost, "/api/v1/query", http.StatusBadRequest},
		{"ingest requires body", http.MethodPost, "/api/v1/ingest", http.StatusBadRequest},
		{"reindex on empty store", http.MethodPost, "/api/v1/reindex", http.StatusOK},
		{"documents require filter", http.MethodGet, "/api/v1/documents", http.StatusBadRequest},
		{"stats", http.MethodGet, "/api/v1/stats", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound},
		{"method mismatch", http.MethodGet, "/api/v1/query", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServerErrorCarriesRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "req-123", resp.RequestID)
}

func TestServerWildcardCORS(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}
