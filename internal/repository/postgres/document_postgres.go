package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const pgUniqueViolation = "23505"

const documentColumns = `id, organization_id, created_by, original_name, name, mime_type, original_size,
	original_sha256_hash, storage_key, content, is_deleted, deleted_at, deleted_by,
	file_encryption_key_wrapped, file_encryption_algorithm, file_encryption_kek_version,
	created_at, updated_at`

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.OrganizationID,
		&d.CreatedBy,
		&d.OriginalName,
		&d.Name,
		&d.MimeType,
		&d.OriginalSize,
		&d.OriginalSHA256,
		&d.StorageKey,
		&d.Content,
		&d.IsDeleted,
		&d.DeletedAt,
		&d.DeletedBy,
		&d.FileEncryptionKeyWrapped,
		&d.FileEncryptionAlgorithm,
		&d.FileEncryptionKEKVersion,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	defer rows.Close()
	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	q := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OrganizationID,
		doc.CreatedBy,
		doc.OriginalName,
		doc.Name,
		doc.MimeType,
		doc.OriginalSize,
		doc.OriginalSHA256,
		doc.StorageKey,
		doc.Content,
		doc.IsDeleted,
		doc.DeletedAt,
		doc.DeletedBy,
		doc.FileEncryptionKeyWrapped,
		doc.FileEncryptionAlgorithm,
		doc.FileEncryptionKEKVersion,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert document %s: %w", doc.ID, repository.ErrConflict)
		}
		return nil, err
	}
	return out, nil
}

// GetByID fetches a single document of the organization, trashed or not.
func (r *DocumentPostgres) GetByID(ctx context.Context, organizationID, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1 AND id = $2`
	return scanDocument(r.db.QueryRowContext(ctx, q, organizationID, id))
}

// GetBySha256Hash fetches the document with the given content hash, trashed or not.
func (r *DocumentPostgres) GetBySha256Hash(ctx context.Context, organizationID, hash string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1 AND original_sha256_hash = $2`
	return scanDocument(r.db.QueryRowContext(ctx, q, organizationID, hash))
}

// List returns non-deleted documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, organizationID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return r.page(ctx, organizationID, false, "created_at DESC, id DESC", pq)
}

// ListDeleted returns trashed documents, most recently trashed first.
func (r *DocumentPostgres) ListDeleted(ctx context.Context, organizationID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return r.page(ctx, organizationID, true, "deleted_at DESC, id DESC", pq)
}

func (r *DocumentPostgres) page(ctx context.Context, organizationID string, deleted bool, orderBy string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE organization_id = $1 AND is_deleted = $2`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, organizationID, deleted).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + documentColumns + ` FROM documents
		WHERE organization_id = $1 AND is_deleted = $2
		ORDER BY ` + orderBy + `
		LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, qList, organizationID, deleted, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	items, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// GetDeletedDocuments returns every trashed document of the organization.
func (r *DocumentPostgres) GetDeletedDocuments(ctx context.Context, organizationID string) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1 AND is_deleted = TRUE ORDER BY deleted_at`
	rows, err := r.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// Update applies the non-nil fields of upd.
func (r *DocumentPostgres) Update(ctx context.Context, organizationID, id string, upd model.DocumentUpdate) (*model.Document, error) {
	q := `
		UPDATE documents
		SET name = COALESCE($3, name),
		    content = COALESCE($4, content),
		    updated_at = now()
		WHERE organization_id = $1 AND id = $2
		RETURNING ` + documentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, organizationID, id, upd.Name, upd.Content))
}

// Trash flags the document deleted. An already trashed document is returned unchanged so its
// retention period keeps counting from the first trash.
func (r *DocumentPostgres) Trash(ctx context.Context, organizationID, id string, userID *string, at time.Time) (*model.Document, error) {
	q := `
		UPDATE documents
		SET is_deleted = TRUE,
		    deleted_at = CASE WHEN is_deleted THEN deleted_at ELSE $3 END,
		    deleted_by = CASE WHEN is_deleted THEN deleted_by ELSE $4 END,
		    updated_at = CASE WHEN is_deleted THEN updated_at ELSE now() END
		WHERE organization_id = $1 AND id = $2
		RETURNING ` + documentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, organizationID, id, at, userID))
}

// Restore clears the delete flags and rewrites names and creator when provided.
func (r *DocumentPostgres) Restore(ctx context.Context, organizationID, id string, in model.RestoreInput) (*model.Document, error) {
	q := `
		UPDATE documents
		SET is_deleted = FALSE,
		    deleted_at = NULL,
		    deleted_by = NULL,
		    name = COALESCE(NULLIF($3, ''), name),
		    original_name = COALESCE(NULLIF($4, ''), original_name),
		    created_by = COALESCE($5, created_by),
		    updated_at = now()
		WHERE organization_id = $1 AND id = $2
		RETURNING ` + documentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, organizationID, id, in.Name, in.OriginalName, in.CreatedBy))
}

// Delete removes the row. A missing row is reported as repository.ErrNotFound.
func (r *DocumentPostgres) Delete(ctx context.Context, organizationID, id string) error {
	const q = `DELETE FROM documents WHERE organization_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, organizationID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetOrganizationStats aggregates live counts and sizes in one pass.
func (r *DocumentPostgres) GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_deleted),
			COALESCE(SUM(original_size) FILTER (WHERE NOT is_deleted), 0),
			COUNT(*) FILTER (WHERE is_deleted),
			COALESCE(SUM(original_size) FILTER (WHERE is_deleted), 0)
		FROM documents
		WHERE organization_id = $1
	`
	var s model.OrganizationStats
	if err := r.db.QueryRowContext(ctx, q, organizationID).Scan(
		&s.DocumentsCount,
		&s.DocumentsSize,
		&s.DeletedDocumentsCount,
		&s.DeletedDocumentsSize,
	); err != nil {
		return nil, err
	}
	s.TotalDocumentsCount = s.DocumentsCount + s.DeletedDocumentsCount
	s.TotalDocumentsSize = s.DocumentsSize + s.DeletedDocumentsSize
	return &s, nil
}

// GetExpiredDeletedDocuments returns documents trashed before the cutoff, oldest first.
func (r *DocumentPostgres) GetExpiredDeletedDocuments(ctx context.Context, before time.Time) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents
		WHERE is_deleted = TRUE AND deleted_at < $1
		ORDER BY deleted_at`
	rows, err := r.db.QueryContext(ctx, q, before)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// IterateOrganizationDocuments pages through non-deleted documents with keyset pagination on
// (created_at, id) so rows inserted during the walk do not shift later pages.
func (r *DocumentPostgres) IterateOrganizationDocuments(ctx context.Context, organizationID string, pageSize int, fn func(page []model.Document) error) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	first := `SELECT ` + documentColumns + ` FROM documents
		WHERE organization_id = $1 AND is_deleted = FALSE
		ORDER BY created_at, id
		LIMIT $2`
	next := `SELECT ` + documentColumns + ` FROM documents
		WHERE organization_id = $1 AND is_deleted = FALSE AND (created_at, id) > ($3, $4)
		ORDER BY created_at, id
		LIMIT $2`

	var (
		rows *sql.Rows
		err  error
		last *model.Document
	)
	for {
		if last == nil {
			rows, err = r.db.QueryContext(ctx, first, organizationID, pageSize)
		} else {
			rows, err = r.db.QueryContext(ctx, next, organizationID, pageSize, last.CreatedAt, last.ID)
		}
		if err != nil {
			return err
		}
		page, err := scanDocuments(rows)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		last = &page[len(page)-1]
	}
}
