package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskb/campuskb/internal/chunk"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
	"github.com/campuskb/campuskb/internal/testutil"
)

type fixture struct {
	querier *testutil.Querier
	vectors *testutil.VectorIndex
	store   *knowledge.Store
	indexer *Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	querier := testutil.NewQuerier()
	vectors := testutil.NewVectorIndex()
	store := knowledge.NewStore(querier, log.NewNop())
	return &fixture{
		querier: querier,
		vectors: vectors,
		store:   store,
		indexer: NewIndexer(store, vectors, log.NewNop()),
	}
}

func testChunk(content string) chunk.Chunk {
	return chunk.Chunk{Content: content, SourceTitle: "Tuition Overview", Index: 0, Total: 1}
}

func TestIngestInsertsAndIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.indexer.Ingest(ctx, testChunk("Tuition is $4500 per semester."), knowledge.CategoryTuition, "https://u.edu/tuition")
	require.NoError(t, err)

	assert.Equal(t, OutcomeInserted, res.Outcome)
	assert.True(t, res.Document.Indexed)
	assert.NotEmpty(t, res.Document.VectorRef)
	assert.Equal(t, knowledge.CategoryTuition, res.Document.Category)
	assert.True(t, f.vectors.Has(res.Document.ID))

	stored, err := f.store.Get(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.True(t, stored.Indexed)
	assert.Equal(t, stored.ID, stored.VectorRef)
}

func TestIngestDeduplicatesByChecksum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.indexer.Ingest(ctx, testChunk("Tuition is $4500 per semester."), knowledge.CategoryTuition, "https://u.edu/a")
	require.NoError(t, err)

	// Same content from a different URL, with different whitespace and case.
	dup := testChunk("  TUITION is   $4500 per semester.  ")
	second, err := f.indexer.Ingest(ctx, dup, knowledge.CategoryGeneral, "https://u.edu/b")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAlreadyExists, second.Outcome)
	assert.Equal(t, first.Document.ID, second.Document.ID)

	total, err := f.querier.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 1, f.vectors.Len())
}

func TestIngestDifferentContentProducesTwoDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.indexer.Ingest(ctx, testChunk("Tuition is $4500 per semester."), knowledge.CategoryTuition, "u")
	require.NoError(t, err)
	_, err = f.indexer.Ingest(ctx, testChunk("Tuition is $4501 per semester."), knowledge.CategoryTuition, "u")
	require.NoError(t, err)

	total, err := f.querier.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestIngestVectorFailureLeavesRetryableRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vectors.UpsertErr = errors.New("vector store down")

	res, err := f.indexer.Ingest(ctx, testChunk("Course registration opens in April."), knowledge.CategoryCourses, "u")
	require.Error(t, err)

	// Durable row persists with indexed=false.
	stored, getErr := f.store.Get(ctx, res.Document.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.Indexed)
	assert.Empty(t, stored.VectorRef)

	stats, statsErr := f.indexer.Stats(ctx)
	require.NoError(t, statsErr)
	assert.Equal(t, int64(1), stats.NotIndexedDocuments)

	// Recovery: reindex repairs the drift.
	f.vectors.UpsertErr = nil
	n, err := f.indexer.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, getErr = f.store.Get(ctx, res.Document.ID)
	require.NoError(t, getErr)
	assert.True(t, stored.Indexed)
	assert.True(t, f.vectors.Has(stored.ID))
}

// racingQuerier misses the first checksum lookup, simulating a concurrent
// writer that lands between the dedup check and the insert.
type racingQuerier struct {
	*testutil.Querier
	missed bool
}

func (r *racingQuerier) GetDocumentByChecksum(ctx context.Context, checksum string) (knowledge.DocumentRow, error) {
	if !r.missed {
		r.missed = true
		return knowledge.DocumentRow{}, knowledge.ErrNotFound
	}
	return r.Querier.GetDocumentByChecksum(ctx, checksum)
}

func TestIngestDuplicateRaceResolvedByReRead(t *testing.T) {
	ctx := context.Background()
	racing := &racingQuerier{Querier: testutil.NewQuerier()}
	store := knowledge.NewStore(racing, log.NewNop())
	indexer := NewIndexer(store, testutil.NewVectorIndex(), log.NewNop())

	// The winner's row already exists; our lookup misses once, the insert
	// hits the unique checksum constraint, and the re-read resolves it.
	winner := knowledge.Document{
		ID: "winner", Title: "t", Content: "Shared content.",
		Category: knowledge.CategoryGeneral,
		Checksum: knowledge.Checksum("Shared content."),
	}
	require.NoError(t, store.Insert(ctx, winner))

	res, err := indexer.Ingest(ctx, testChunk("Shared content."), knowledge.CategoryGeneral, "u")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, res.Outcome)
	assert.Equal(t, "winner", res.Document.ID)
}

func TestIngestBatchContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chunks := []chunk.Chunk{
		{Content: "First paragraph of policies.", SourceTitle: "Policies", Index: 0, Total: 3},
		{Content: "Second paragraph of policies.", SourceTitle: "Policies", Index: 1, Total: 3},
		{Content: "Third paragraph of policies.", SourceTitle: "Policies", Index: 2, Total: 3},
	}

	n := f.indexer.IngestBatch(ctx, chunks, knowledge.CategoryPolicies, "u")
	assert.Equal(t, 3, n)

	// Re-ingesting the same batch succeeds entirely as duplicates.
	n = f.indexer.IngestBatch(ctx, chunks, knowledge.CategoryPolicies, "u")
	assert.Equal(t, 3, n)

	total, err := f.querier.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestIngestChunkTitleCarriesPartNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := chunk.Chunk{Content: "part two content", SourceTitle: "Handbook", Index: 1, Total: 3}
	res, err := f.indexer.Ingest(ctx, c, knowledge.CategoryGeneral, "u")
	require.NoError(t, err)
	assert.Equal(t, "Handbook (Part 2 of 3)", res.Document.Title)
	assert.Equal(t, "1", res.Document.Metadata["chunkIndex"])
	assert.Equal(t, "3", res.Document.Metadata["totalChunks"])
}

func TestDeleteRemovesVectorThenRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.indexer.Ingest(ctx, testChunk("Doomed content."), knowledge.CategoryGeneral, "u")
	require.NoError(t, err)
	id := res.Document.ID

	require.NoError(t, f.indexer.Delete(ctx, id))

	assert.False(t, f.vectors.Has(id))
	_, err = f.store.Get(ctx, id)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestDeleteRemovesVectorWithoutVectorRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A write interrupted between the vector upsert and MarkIndexed leaves
	// a stored vector under the document ID while the row's VectorRef is
	// still empty.
	doc := knowledge.Document{
		ID: "interrupted", Title: "t", Content: "Orphan candidate.",
		Category: knowledge.CategoryGeneral,
		Checksum: knowledge.Checksum("Orphan candidate."),
	}
	require.NoError(t, f.store.Insert(ctx, doc))
	require.NoError(t, f.vectors.Upsert(ctx, doc.ID, doc.Content, nil))
	require.True(t, f.vectors.Has(doc.ID))

	require.NoError(t, f.indexer.Delete(ctx, doc.ID))

	assert.False(t, f.vectors.Has(doc.ID), "dangling vector must not survive the delete")
	_, err := f.store.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestDeleteMissingDocument(t *testing.T) {
	f := newFixture(t)
	err := f.indexer.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestReindexAllConvergesEveryDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contents := []string{"alpha content", "beta content", "gamma content"}
	for _, c := range contents {
		_, err := f.indexer.Ingest(ctx, testChunk(c), knowledge.CategoryGeneral, "u")
		require.NoError(t, err)
	}

	// Wipe the vector side to simulate drift.
	docs, err := f.store.List(ctx)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, f.vectors.Delete(ctx, []string{d.ID}))
	}
	assert.Equal(t, 0, f.vectors.Len())

	n, err := f.indexer.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, f.vectors.Len())

	docs, err = f.store.List(ctx)
	require.NoError(t, err)
	for _, d := range docs {
		assert.True(t, d.Indexed)
		assert.NotEmpty(t, d.VectorRef)
	}
}
