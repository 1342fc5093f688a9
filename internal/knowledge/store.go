package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates no document exists with the given ID.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateChecksum indicates a document with the same content
	// fingerprint already exists. This is an expected dedup outcome, not a
	// failure; callers resolve it by reading the existing document.
	ErrDuplicateChecksum = errors.New("duplicate checksum")
)

// Querier defines the database operations the Store needs. The interface
// lives with the consumer so tests can substitute an in-memory
// implementation; PGQuerier in queries.go is the production one.
type Querier interface {
	InsertDocument(ctx context.Context, arg InsertDocumentParams) error
	GetDocument(ctx context.Context, id string) (DocumentRow, error)
	GetDocumentByChecksum(ctx context.Context, checksum string) (DocumentRow, error)
	MarkDocumentIndexed(ctx context.Context, arg MarkDocumentIndexedParams) error
	ListDocuments(ctx context.Context) ([]DocumentRow, error)
	ListDocumentsByCategory(ctx context.Context, arg ListDocumentsByCategoryParams) ([]DocumentRow, error)
	SearchDocumentsByContent(ctx context.Context, arg SearchDocumentsByContentParams) ([]DocumentRow, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int64, error)
	CountDocumentsIndexed(ctx context.Context, indexed bool) (int64, error)
	CountDocumentsByCategory(ctx context.Context) ([]CategoryCount, error)
}

// DocumentRow is the row shape exchanged with the Querier.
type DocumentRow struct {
	ID        string
	Title     string
	Content   string
	Category  string
	Source    string
	Metadata  map[string]string
	Checksum  string
	Indexed   bool
	VectorRef string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InsertDocumentParams carries a new document row. Indexed is implicitly
// false on insert; the vector reference is set later via MarkDocumentIndexed.
type InsertDocumentParams struct {
	ID        string
	Title     string
	Content   string
	Category  string
	Source    string
	Metadata  map[string]string
	Checksum  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkDocumentIndexedParams flips a document to indexed with its vector ref.
type MarkDocumentIndexedParams struct {
	ID        string
	VectorRef string
	UpdatedAt time.Time
}

// ListDocumentsByCategoryParams filters the category read path.
type ListDocumentsByCategoryParams struct {
	Category    string
	ResultLimit int32
}

// SearchDocumentsByContentParams drives the lexical fallback search.
type SearchDocumentsByContentParams struct {
	Term        string
	ResultLimit int32
}

// CategoryCount is one row of the per-category breakdown.
type CategoryCount struct {
	Category string
	Count    int64
}

// MaxListLimit bounds administrative list queries to prevent unbounded
// result sets.
const MaxListLimit = 1000

// Store is the durable document store. It is safe for concurrent use; the
// at-most-one-document-per-checksum invariant is enforced by the database's
// unique index, not by in-process locking.
type Store struct {
	queries Querier
	logger  *slog.Logger
}

// NewStore creates a Store over the given querier. A nil logger falls back
// to slog.Default().
func NewStore(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, logger: logger}
}

// Insert persists a new document with indexed=false. Returns
// ErrDuplicateChecksum (possibly wrapped) when a document with the same
// fingerprint already exists.
func (s *Store) Insert(ctx context.Context, doc Document) error {
	err := s.queries.InsertDocument(ctx, InsertDocumentParams{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		Category:  doc.Category.String(),
		Source:    doc.Source,
		Metadata:  doc.Metadata,
		Checksum:  doc.Checksum,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateChecksum) {
			return err
		}
		return fmt.Errorf("inserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document inserted", "id", doc.ID, "category", doc.Category.String())
	return nil
}

// Get returns the document with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	row, err := s.queries.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("getting document %q: %w", id, err)
	}
	return rowToDocument(row), nil
}

// GetByChecksum looks up a document by its content fingerprint. The second
// return value reports whether a document was found.
func (s *Store) GetByChecksum(ctx context.Context, checksum string) (Document, bool, error) {
	row, err := s.queries.GetDocumentByChecksum(ctx, checksum)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("looking up checksum: %w", err)
	}
	return rowToDocument(row), true, nil
}

// MarkIndexed records a successful vector write for the document. This is
// the single conditional write path that flips indexed and sets the vector
// reference together.
func (s *Store) MarkIndexed(ctx context.Context, id, vectorRef string, at time.Time) error {
	err := s.queries.MarkDocumentIndexed(ctx, MarkDocumentIndexedParams{
		ID:        id,
		VectorRef: vectorRef,
		UpdatedAt: at,
	})
	if err != nil {
		return fmt.Errorf("marking document %q indexed: %w", id, err)
	}
	return nil
}

// List returns every durable document, newest first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.queries.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return rowsToDocuments(rows), nil
}

// ListByCategory returns up to limit documents in the given category,
// newest first. This is an administrative read path independent of vector
// similarity.
func (s *Store) ListByCategory(ctx context.Context, category Category, limit int32) ([]Document, error) {
	if limit <= 0 || limit > MaxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", MaxListLimit, limit)
	}

	rows, err := s.queries.ListDocumentsByCategory(ctx, ListDocumentsByCategoryParams{
		Category:    category.String(),
		ResultLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents by category: %w", err)
	}
	return rowsToDocuments(rows), nil
}

// SearchContent performs a substring match over stored content. This is the
// explicit lexical fallback for when vector retrieval yields nothing; it is
// never substituted silently.
func (s *Store) SearchContent(ctx context.Context, term string, limit int32) ([]Document, error) {
	if term = trimTerm(term); term == "" {
		return nil, nil
	}
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.queries.SearchDocumentsByContent(ctx, SearchDocumentsByContentParams{
		Term:        term,
		ResultLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching documents by content: %w", err)
	}
	return rowsToDocuments(rows), nil
}

// Delete removes the durable row for the document.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.queries.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	s.logger.Debug("document deleted", "id", id)
	return nil
}

// Stats returns counts of total, indexed, and not-yet-indexed documents plus
// a per-category breakdown. indexed=false rows are the retry candidates for
// reindexing.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	total, err := s.queries.CountDocuments(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	indexed, err := s.queries.CountDocumentsIndexed(ctx, true)
	if err != nil {
		return Stats{}, fmt.Errorf("counting indexed documents: %w", err)
	}
	byCategory, err := s.queries.CountDocumentsByCategory(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents by category: %w", err)
	}

	categoryMap := make(map[string]int64, len(byCategory))
	for _, cc := range byCategory {
		categoryMap[cc.Category] = cc.Count
	}

	return Stats{
		TotalDocuments:      total,
		IndexedDocuments:    indexed,
		NotIndexedDocuments: total - indexed,
		DocumentsByCategory: categoryMap,
	}, nil
}

func rowToDocument(row DocumentRow) Document {
	category, _ := ParseCategory(row.Category)
	return Document{
		ID:        row.ID,
		Title:     row.Title,
		Content:   row.Content,
		Category:  category,
		Source:    row.Source,
		Metadata:  row.Metadata,
		Checksum:  row.Checksum,
		Indexed:   row.Indexed,
		VectorRef: row.VectorRef,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func rowsToDocuments(rows []DocumentRow) []Document {
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, rowToDocument(row))
	}
	return docs
}

func trimTerm(term string) string {
	const maxTermLen = 200
	term = strings.TrimSpace(term)
	if runes := []rune(term); len(runes) > maxTermLen {
		term = string(runes[:maxTermLen])
	}
	return term
}
