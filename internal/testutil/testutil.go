// Package testutil provides in-memory test doubles for the storage and
// embedding boundaries.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/campuskb/campuskb/internal/knowledge"
)

// Embedder is a deterministic in-process embedder. Vectors are derived from
// token hashes, so identical text always embeds identically and texts
// sharing words land near each other.
type Embedder struct {
	Dim int

	// Fail, when set, makes every Embed call return this error.
	Fail error
}

func (e *Embedder) Name() string { return "test-embedder" }

func (e *Embedder) Dimension() int {
	if e.Dim <= 0 {
		return 64
	}
	return e.Dim
}

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.Fail != nil {
		return nil, e.Fail
	}

	dim := e.Dimension()
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(word))
		idx := int(binary.BigEndian.Uint32(sum[:4])) % dim
		if idx < 0 {
			idx = -idx
		}
		vec[idx]++
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := 1.0 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec
}

// VectorIndex is an in-memory knowledge.VectorIndex. Similarity is the
// cosine of test-embedder vectors, so exact text matches score 1.0.
type VectorIndex struct {
	mu       sync.Mutex
	embedder Embedder
	entries  map[string]vectorEntry

	// UpsertErr and SearchErr, when set, fail the corresponding calls.
	UpsertErr error
	SearchErr error
}

type vectorEntry struct {
	content  string
	metadata map[string]string
	vec      []float32
}

// NewVectorIndex creates an empty in-memory index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]vectorEntry)}
}

func (f *VectorIndex) Upsert(ctx context.Context, id, content string, metadata map[string]string) error {
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	vec, err := f.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[id] = vectorEntry{content: content, metadata: metadata, vec: vec}
	return nil
}

func (f *VectorIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

func (f *VectorIndex) SimilaritySearch(ctx context.Context, query string, topK int, minSimilarity float64) ([]knowledge.Match, error) {
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	qvec, err := f.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []knowledge.Match
	for id, entry := range f.entries {
		sim := dot(qvec, entry.vec)
		if sim >= minSimilarity {
			matches = append(matches, knowledge.Match{
				ID:         id,
				Content:    entry.content,
				Metadata:   entry.metadata,
				Similarity: sim,
			})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports how many vectors are stored.
func (f *VectorIndex) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Has reports whether a vector exists for id.
func (f *VectorIndex) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[id]
	return ok
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		if i < len(b) {
			sum += float64(a[i]) * float64(b[i])
		}
	}
	return sum
}

// Querier is an in-memory knowledge.Querier enforcing the unique-checksum
// invariant the way the database does.
type Querier struct {
	mu   sync.Mutex
	rows map[string]knowledge.DocumentRow

	// InsertErr, when set, fails InsertDocument with this error.
	InsertErr error
}

// NewQuerier creates an empty in-memory querier.
func NewQuerier() *Querier {
	return &Querier{rows: make(map[string]knowledge.DocumentRow)}
}

func (q *Querier) InsertDocument(_ context.Context, arg knowledge.InsertDocumentParams) error {
	if q.InsertErr != nil {
		return q.InsertErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, row := range q.rows {
		if row.Checksum == arg.Checksum {
			return fmt.Errorf("checksum %s: %w", arg.Checksum, knowledge.ErrDuplicateChecksum)
		}
	}
	q.rows[arg.ID] = knowledge.DocumentRow{
		ID:        arg.ID,
		Title:     arg.Title,
		Content:   arg.Content,
		Category:  arg.Category,
		Source:    arg.Source,
		Metadata:  arg.Metadata,
		Checksum:  arg.Checksum,
		CreatedAt: arg.CreatedAt,
		UpdatedAt: arg.UpdatedAt,
	}
	return nil
}

func (q *Querier) GetDocument(_ context.Context, id string) (knowledge.DocumentRow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	row, ok := q.rows[id]
	if !ok {
		return knowledge.DocumentRow{}, knowledge.ErrNotFound
	}
	return row, nil
}

func (q *Querier) GetDocumentByChecksum(_ context.Context, checksum string) (knowledge.DocumentRow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, row := range q.rows {
		if row.Checksum == checksum {
			return row, nil
		}
	}
	return knowledge.DocumentRow{}, knowledge.ErrNotFound
}

func (q *Querier) MarkDocumentIndexed(_ context.Context, arg knowledge.MarkDocumentIndexedParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	row, ok := q.rows[arg.ID]
	if !ok {
		return knowledge.ErrNotFound
	}
	row.Indexed = true
	row.VectorRef = arg.VectorRef
	row.UpdatedAt = arg.UpdatedAt
	q.rows[arg.ID] = row
	return nil
}

func (q *Querier) ListDocuments(_ context.Context) ([]knowledge.DocumentRow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedRowsLocked(), nil
}

func (q *Querier) ListDocumentsByCategory(_ context.Context, arg knowledge.ListDocumentsByCategoryParams) ([]knowledge.DocumentRow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []knowledge.DocumentRow
	for _, row := range q.sortedRowsLocked() {
		if row.Category == arg.Category {
			out = append(out, row)
			if len(out) == int(arg.ResultLimit) {
				break
			}
		}
	}
	return out, nil
}

func (q *Querier) SearchDocumentsByContent(_ context.Context, arg knowledge.SearchDocumentsByContentParams) ([]knowledge.DocumentRow, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	term := strings.ToLower(arg.Term)
	var out []knowledge.DocumentRow
	for _, row := range q.sortedRowsLocked() {
		if strings.Contains(strings.ToLower(row.Content), term) {
			out = append(out, row)
			if len(out) == int(arg.ResultLimit) {
				break
			}
		}
	}
	return out, nil
}

func (q *Querier) DeleteDocument(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.rows, id)
	return nil
}

func (q *Querier) CountDocuments(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.rows)), nil
}

func (q *Querier) CountDocumentsIndexed(_ context.Context, indexed bool) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, row := range q.rows {
		if row.Indexed == indexed {
			n++
		}
	}
	return n, nil
}

func (q *Querier) CountDocumentsByCategory(_ context.Context) ([]knowledge.CategoryCount, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int64)
	for _, row := range q.rows {
		counts[row.Category]++
	}
	out := make([]knowledge.CategoryCount, 0, len(counts))
	for category, n := range counts {
		out = append(out, knowledge.CategoryCount{Category: category, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// sortedRowsLocked returns rows newest first, matching the production
// ORDER BY created_at DESC. Callers must hold mu.
func (q *Querier) sortedRowsLocked() []knowledge.DocumentRow {
	rows := make([]knowledge.DocumentRow, 0, len(q.rows))
	for _, row := range q.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}
