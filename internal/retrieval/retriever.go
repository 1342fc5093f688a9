// Package retrieval answers queries against the vector index and the
// durable store. Vector retrieval never surfaces an error to the caller:
// availability beats completeness, so a failing or slow index degrades to an
// empty result the confidence scorer then reflects as zero retrieval yield.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/campuskb/campuskb/internal/knowledge"
)

const (
	// DefaultTopK is the neighbor count when the caller passes none.
	DefaultTopK = 5

	// MinSimilarity is the default floor below which matches are excluded,
	// never padded with lower-quality fallbacks.
	MinSimilarity = 0.5

	// DefaultTimeout bounds one retrieval so a slow vector index degrades
	// to the empty result instead of blocking the caller.
	DefaultTimeout = 10 * time.Second
)

// Scored is one retrieval hit: chunk content with its similarity in
// descending order within a result set.
type Scored struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// Retriever serves the query-path read operations.
type Retriever struct {
	vectors       knowledge.VectorIndex
	store         *knowledge.Store
	timeout       time.Duration
	minSimilarity float64
	logger        *slog.Logger
}

// NewRetriever creates a Retriever. A non-positive timeout takes
// DefaultTimeout, a non-positive minSimilarity takes MinSimilarity, and a
// nil logger falls back to slog.Default().
func NewRetriever(vectors knowledge.VectorIndex, store *knowledge.Store, timeout time.Duration, minSimilarity float64, logger *slog.Logger) *Retriever {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if minSimilarity <= 0 {
		minSimilarity = MinSimilarity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		vectors:       vectors,
		store:         store,
		timeout:       timeout,
		minSimilarity: minSimilarity,
		logger:        logger,
	}
}

// Retrieve returns up to topK chunks similar to query, descending by
// similarity, all at or above the configured floor. On any vector-index
// failure it logs and returns an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []Scored {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	matches, err := r.vectors.SimilaritySearch(ctx, query, topK, r.minSimilarity)
	if err != nil {
		r.logger.Error("vector retrieval failed, returning empty result", "error", err)
		return nil
	}

	results := make([]Scored, 0, len(matches))
	for _, m := range matches {
		results = append(results, Scored{
			ID:         m.ID,
			Content:    m.Content,
			Metadata:   m.Metadata,
			Similarity: m.Similarity,
		})
	}

	r.logger.Debug("retrieved documents", "query_len", len(query), "results", len(results))
	return results
}

// SearchContent is the explicit lexical fallback: substring match over
// durable content. Callers invoke it deliberately when vector retrieval
// yields nothing; it is never substituted silently.
func (r *Retriever) SearchContent(ctx context.Context, term string, limit int32) ([]knowledge.Document, error) {
	return r.store.SearchContent(ctx, term, limit)
}

// ByCategory is the administrative category browse, independent of vector
// similarity.
func (r *Retriever) ByCategory(ctx context.Context, category knowledge.Category, limit int32) ([]knowledge.Document, error) {
	return r.store.ListByCategory(ctx, category, limit)
}

// Ready reports whether at least one indexed document exists.
func (r *Retriever) Ready(ctx context.Context) bool {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		r.logger.Error("readiness check failed", "error", err)
		return false
	}
	return stats.IndexedDocuments > 0
}
