package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGQuerier is the PostgreSQL implementation of Querier over a pgx pool.
// All queries are parameterized; filter and metadata values never reach SQL
// as raw strings.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a PGQuerier over the given connection pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

const documentColumns = `id, title, content, category, source, metadata, checksum, indexed, COALESCE(vector_ref, ''), created_at, updated_at`

func (q *PGQuerier) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	metadata, err := json.Marshal(arg.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = q.pool.Exec(ctx, `
		INSERT INTO documents (id, title, content, category, source, metadata, checksum, indexed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)`,
		arg.ID, arg.Title, arg.Content, arg.Category, arg.Source, metadata, arg.Checksum, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("checksum %s: %w", arg.Checksum, ErrDuplicateChecksum)
		}
		return err
	}
	return nil
}

func (q *PGQuerier) GetDocument(ctx context.Context, id string) (DocumentRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocumentRow(row)
}

func (q *PGQuerier) GetDocumentByChecksum(ctx context.Context, checksum string) (DocumentRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE checksum = $1`, checksum)
	return scanDocumentRow(row)
}

func (q *PGQuerier) MarkDocumentIndexed(ctx context.Context, arg MarkDocumentIndexedParams) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE documents SET indexed = TRUE, vector_ref = $2, updated_at = $3 WHERE id = $1`,
		arg.ID, arg.VectorRef, arg.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *PGQuerier) ListDocuments(ctx context.Context) ([]DocumentRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (q *PGQuerier) ListDocumentsByCategory(ctx context.Context, arg ListDocumentsByCategoryParams) ([]DocumentRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE category = $1 ORDER BY created_at DESC LIMIT $2`,
		arg.Category, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (q *PGQuerier) SearchDocumentsByContent(ctx context.Context, arg SearchDocumentsByContentParams) ([]DocumentRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE content ILIKE '%' || $1 || '%' ORDER BY created_at DESC LIMIT $2`,
		arg.Term, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (q *PGQuerier) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (q *PGQuerier) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (q *PGQuerier) CountDocumentsIndexed(ctx context.Context, indexed bool) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE indexed = $1`, indexed).Scan(&count)
	return count, err
}

func (q *PGQuerier) CountDocumentsByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := q.pool.Query(ctx, `SELECT category, COUNT(*) FROM documents GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, cc)
	}
	return counts, rows.Err()
}

func scanDocumentRow(row pgx.Row) (DocumentRow, error) {
	var (
		r        DocumentRow
		metadata []byte
	)
	err := row.Scan(&r.ID, &r.Title, &r.Content, &r.Category, &r.Source, &metadata,
		&r.Checksum, &r.Indexed, &r.VectorRef, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DocumentRow{}, ErrNotFound
		}
		return DocumentRow{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			r.Metadata = nil
		}
	}
	return r, nil
}

func scanDocumentRows(rows pgx.Rows) ([]DocumentRow, error) {
	var result []DocumentRow
	for rows.Next() {
		var (
			r        DocumentRow
			metadata []byte
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.Category, &r.Source, &metadata,
			&r.Checksum, &r.Indexed, &r.VectorRef, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				r.Metadata = nil
			}
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
