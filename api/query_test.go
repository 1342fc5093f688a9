package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/pipeline"
	"github.com/campuskb/campuskb/internal/prompt"
	"github.com/campuskb/campuskb/internal/retrieval"
	"github.com/campuskb/campuskb/internal/testutil"
)

func newQueryHandler(t *testing.T, vectors *testutil.VectorIndex) *QueryHandler {
	t.Helper()
	logger := log.NewNop()
	store := knowledge.NewStore(testutil.NewQuerier(), logger)
	retriever := retrieval.NewRetriever(vectors, store, 0, 0, logger)
	complete := func(_ context.Context, _, _ string) (string, error) {
		return "Tuition is $4500 per semester.", nil
	}
	service := pipeline.NewService(retriever, prompt.Default(), complete, 0, logger)
	return NewQueryHandler(service, logger)
}

func TestQueryHandler_Query(t *testing.T) {
	vectors := testutil.NewVectorIndex()
	question := "How much is tuition per semester?"
	require.NoError(t, vectors.Upsert(context.Background(), "d1", question, map[string]string{
		"source": "https://u.example/tuition",
	}))
	h := newQueryHandler(t, vectors)

	body := `{"question": "How much is tuition per semester?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.query(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var answer pipeline.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.Equal(t, "Tuition is $4500 per semester.", answer.Response)
	assert.Equal(t, "TUITION", answer.Category)
	assert.Len(t, answer.TopDocuments, 1)
	assert.Equal(t, []string{"https://u.example/tuition"}, answer.Sources)
}

func TestQueryHandler_ExplicitCategory(t *testing.T) {
	h := newQueryHandler(t, testutil.NewVectorIndex())

	body := `{"question": "anything", "category": "deadlines"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.query(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var answer pipeline.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.Equal(t, "DEADLINES", answer.Category)
}

func TestQueryHandler_Validation(t *testing.T) {
	h := newQueryHandler(t, testutil.NewVectorIndex())

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", `{}`, "question is required"},
		{"malformed json", `{`, "invalid request body"},
		{"unknown category", `{"question": "q", "category": "SPORTS"}`, "unknown category"},
		{"oversized question", `{"question": "` + strings.Repeat("a", MaxQuestionLength+1) + `"}`, "question too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.query(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}
