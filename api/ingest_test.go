package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/campuskb/campuskb/internal/chunk"
	"github.com/campuskb/campuskb/internal/ingest"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/pipeline"
	"github.com/campuskb/campuskb/internal/scrape"
	"github.com/campuskb/campuskb/internal/testutil"
)

func newIngestFixture(t *testing.T) (*IngestHandler, *testutil.VectorIndex) {
	t.Helper()
	logger := log.NewNop()

	extractor := scrape.NewExtractor(scrape.ExtractorConfig{AllowPrivateHosts: true}, logger)
	scraper := scrape.NewScraper(extractor, 2, rate.Inf, logger)

	vectors := testutil.NewVectorIndex()
	store := knowledge.NewStore(testutil.NewQuerier(), logger)
	indexer := ingest.NewIndexer(store, vectors, logger)
	loader := pipeline.NewLoader(scraper, chunk.NewSplitter(chunk.DefaultLimits(), logger), indexer, logger)

	return NewIngestHandler(loader, indexer, logger), vectors
}

func TestIngestHandler_Ingest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Tuition</title></head><body><main>
<p>Tuition is $4500 per semester for undergraduates.</p>
</main></body></html>`)
	}))
	defer srv.Close()

	h, vectors := newIngestFixture(t)

	body := fmt.Sprintf(`{"urls": [%q]}`, srv.URL+"/tuition")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.ingest(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats pipeline.LoadStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.URLsRequested)
	assert.Equal(t, 1, stats.URLsScraped)
	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 1, vectors.Len())
}

func TestIngestHandler_Validation(t *testing.T) {
	h, _ := newIngestFixture(t)

	urls := make([]string, MaxIngestURLs+1)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://u.example/page-%d", i)
	}
	tooMany, err := json.Marshal(IngestRequest{URLs: urls})
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", `{}`, "urls is required"},
		{"malformed json", `{`, "invalid request body"},
		{"too many urls", string(tooMany), "too many urls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.ingest(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestIngestHandler_Reindex(t *testing.T) {
	h, vectors := newIngestFixture(t)

	// One document whose vector has gone missing.
	result, err := h.indexer.Ingest(context.Background(),
		chunk.Chunk{Content: "Fall registration closes August 15.", SourceTitle: "Deadlines", Index: 1, Total: 1},
		knowledge.CategoryDeadlines, "https://u.example/deadlines")
	require.NoError(t, err)
	require.NoError(t, vectors.Delete(context.Background(), []string{result.Document.ID}))
	require.Equal(t, 0, vectors.Len())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reindex", nil)
	w := httptest.NewRecorder()

	h.reindex(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["reindexed"])
}
