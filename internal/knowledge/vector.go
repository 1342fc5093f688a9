package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/campuskb/campuskb/internal/embedding"
)

// Match is one vector search hit. Similarity is cosine similarity in [0, 1],
// higher is closer.
type Match struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// VectorIndex abstracts the vector store so the indexer and retriever do not
// depend on pgvector directly. PGVectorIndex is the production implementation.
type VectorIndex interface {
	Upsert(ctx context.Context, id, content string, metadata map[string]string) error
	Delete(ctx context.Context, ids []string) error
	SimilaritySearch(ctx context.Context, query string, topK int, minSimilarity float64) ([]Match, error)
}

// PGVectorIndex stores embeddings in the document_vectors table using the
// pgvector extension. Writes embed the content through the configured
// Embedder before hitting the database.
type PGVectorIndex struct {
	pool     *pgxpool.Pool
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewPGVectorIndex creates a PGVectorIndex. A nil logger falls back to
// slog.Default().
func NewPGVectorIndex(pool *pgxpool.Pool, embedder embedding.Embedder, logger *slog.Logger) *PGVectorIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGVectorIndex{pool: pool, embedder: embedder, logger: logger}
}

// Upsert embeds content and writes the vector row, replacing any existing
// row with the same ID. The write is idempotent so reindexing can safely
// revisit already-indexed documents.
func (v *PGVectorIndex) Upsert(ctx context.Context, id, content string, metadata map[string]string) error {
	vec, err := v.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding content for %q: %w", id, err)
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = v.pool.Exec(ctx, `
		INSERT INTO document_vectors (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
		id, content, pgvector.NewVector(vec), meta)
	if err != nil {
		return fmt.Errorf("upserting vector for %q: %w", id, err)
	}

	v.logger.Debug("vector upserted", "id", id, "model", v.embedder.Name())
	return nil
}

// Delete removes the vector rows for the given IDs. Missing IDs are not an
// error; delete converges on absence.
func (v *PGVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := v.pool.Exec(ctx, `DELETE FROM document_vectors WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// SimilaritySearch embeds the query and returns up to topK matches whose
// cosine similarity is at least minSimilarity, ordered most similar first.
func (v *PGVectorIndex) SimilaritySearch(ctx context.Context, query string, topK int, minSimilarity float64) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := v.pool.Query(ctx, `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM document_vectors
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vec), minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Content, &meta, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				m.Metadata = nil
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
