// Package ingest writes chunks into the durable store and the vector index
// with content-checksum deduplication. The write is two-phase: the durable
// row lands first with indexed=false, the vector write follows, and only
// vector success flips the indexed flag. A crash or vector failure between
// phases leaves a retryable indexed=false row that ReindexAll repairs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campuskb/campuskb/internal/chunk"
	"github.com/campuskb/campuskb/internal/knowledge"
)

// Outcome discriminates the two expected results of an ingest: a new
// document was inserted, or identical content was already present.
type Outcome int

const (
	// OutcomeInserted means a new document was created and indexed.
	OutcomeInserted Outcome = iota

	// OutcomeAlreadyExists means the chunk's checksum matched an existing
	// document; nothing was written.
	OutcomeAlreadyExists
)

// IngestResult carries the ingested or pre-existing document along with
// which of the two it is. Duplicate content is a normal outcome here, never
// an error.
type IngestResult struct {
	Outcome  Outcome
	Document knowledge.Document
}

// Indexer coordinates the durable store and the vector index.
type Indexer struct {
	store   *knowledge.Store
	vectors knowledge.VectorIndex
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewIndexer creates an Indexer. A nil logger falls back to slog.Default().
func NewIndexer(store *knowledge.Store, vectors knowledge.VectorIndex, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:   store,
		vectors: vectors,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Ingest writes one chunk. Idempotent under identical content: the checksum
// over the normalized text is the sole dedup key, and a second ingest of the
// same content returns the existing document untouched.
//
// A vector write failure is returned as an error but leaves the durable row
// in place with indexed=false; stats surface it and ReindexAll retries it.
func (ix *Indexer) Ingest(ctx context.Context, c chunk.Chunk, category knowledge.Category, sourceURL string) (IngestResult, error) {
	checksum := knowledge.Checksum(c.Content)

	if existing, found, err := ix.store.GetByChecksum(ctx, checksum); err != nil {
		return IngestResult{}, err
	} else if found {
		ix.logger.Debug("duplicate content skipped", "title", c.Title(), "existing_id", existing.ID)
		return IngestResult{Outcome: OutcomeAlreadyExists, Document: existing}, nil
	}

	now := ix.now()
	doc := knowledge.Document{
		ID:       ix.newID(),
		Title:    c.Title(),
		Content:  c.Content,
		Category: category,
		Source:   sourceURL,
		Metadata: map[string]string{
			"sourceTitle": c.SourceTitle,
			"chunkIndex":  fmt.Sprintf("%d", c.Index),
			"totalChunks": fmt.Sprintf("%d", c.Total),
		},
		Checksum:  checksum,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := ix.store.Insert(ctx, doc); err != nil {
		// Two concurrent ingests of the same content race on the unique
		// checksum index; the loser reads the winner's row.
		if errors.Is(err, knowledge.ErrDuplicateChecksum) {
			existing, found, lookupErr := ix.store.GetByChecksum(ctx, checksum)
			if lookupErr != nil {
				return IngestResult{}, lookupErr
			}
			if found {
				return IngestResult{Outcome: OutcomeAlreadyExists, Document: existing}, nil
			}
		}
		return IngestResult{}, err
	}

	if err := ix.vectors.Upsert(ctx, doc.ID, doc.Content, vectorMetadata(doc)); err != nil {
		ix.logger.Error("vector write failed, document remains unindexed",
			"id", doc.ID, "title", doc.Title, "error", err)
		return IngestResult{Outcome: OutcomeInserted, Document: doc},
			fmt.Errorf("vector write for %q: %w", doc.ID, err)
	}

	indexed := doc.WithVector(doc.ID, ix.now())
	if err := ix.store.MarkIndexed(ctx, indexed.ID, indexed.VectorRef, indexed.UpdatedAt); err != nil {
		return IngestResult{Outcome: OutcomeInserted, Document: doc}, err
	}

	ix.logger.Info("document indexed", "id", indexed.ID, "title", indexed.Title)
	return IngestResult{Outcome: OutcomeInserted, Document: indexed}, nil
}

// IngestBatch writes every chunk from one source page, continuing past
// individual failures. Returns the number of chunks ingested without error
// (duplicates count as success).
func (ix *Indexer) IngestBatch(ctx context.Context, chunks []chunk.Chunk, category knowledge.Category, sourceURL string) int {
	succeeded := 0
	for _, c := range chunks {
		if _, err := ix.Ingest(ctx, c, category, sourceURL); err != nil {
			ix.logger.Error("failed to ingest chunk", "title", c.Title(), "error", err)
			continue
		}
		succeeded++
	}
	ix.logger.Info("batch ingest complete", "succeeded", succeeded, "total", len(chunks))
	return succeeded
}

// ReindexAll re-derives and re-writes the vector for every durable document
// regardless of its current indexed state, repairing drift from failed or
// interrupted two-phase writes. Returns the count successfully reindexed.
func (ix *Indexer) ReindexAll(ctx context.Context) (int, error) {
	docs, err := ix.store.List(ctx)
	if err != nil {
		return 0, err
	}
	ix.logger.Info("starting full reindex", "documents", len(docs))

	reindexed := 0
	for _, doc := range docs {
		if err := ix.vectors.Upsert(ctx, doc.ID, doc.Content, vectorMetadata(doc)); err != nil {
			ix.logger.Error("failed to reindex document", "id", doc.ID, "error", err)
			continue
		}
		if err := ix.store.MarkIndexed(ctx, doc.ID, doc.ID, ix.now()); err != nil {
			ix.logger.Error("failed to flag reindexed document", "id", doc.ID, "error", err)
			continue
		}
		reindexed++
	}

	ix.logger.Info("reindex complete", "reindexed", reindexed, "total", len(docs))
	return reindexed, nil
}

// Delete removes the document from the vector index first, then the durable
// store. The ordering is deliberate: a failed durable delete after the
// vector delete leaves a safe durable-only orphan, while the reverse could
// leave a dangling vector that retrieval would still return.
func (ix *Indexer) Delete(ctx context.Context, id string) error {
	doc, err := ix.store.Get(ctx, id)
	if err != nil {
		return err
	}

	// Vector rows are keyed by document ID, and an interrupted two-phase
	// write can leave a stored vector on a row whose VectorRef is still
	// empty. The delete keys off the ID unconditionally; a missing vector
	// deletes as a no-op.
	if err := ix.vectors.Delete(ctx, []string{doc.ID}); err != nil {
		return fmt.Errorf("deleting vector for %q: %w", id, err)
	}
	return ix.store.Delete(ctx, id)
}

// Stats reports durable-store counts; indexed=false rows are the pending
// retry candidates.
func (ix *Indexer) Stats(ctx context.Context) (knowledge.Stats, error) {
	return ix.store.Stats(ctx)
}

func vectorMetadata(doc knowledge.Document) map[string]string {
	source := doc.Source
	if source == "" {
		source = "unknown"
	}
	return map[string]string{
		"title":      doc.Title,
		"category":   doc.Category.String(),
		"source":     source,
		"documentId": doc.ID,
	}
}
