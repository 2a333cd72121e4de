package postgres

import (
	"context"
	"database/sql"
	"errors"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// TagPostgres is a PostgreSQL implementation of repository.TagRepository.
type TagPostgres struct {
	db *sql.DB
}

func NewTagPostgres(db *sql.DB) *TagPostgres {
	return &TagPostgres{db: db}
}

var _ repository.TagRepository = (*TagPostgres)(nil)

func (r *TagPostgres) GetByID(ctx context.Context, organizationID, id string) (*model.Tag, error) {
	const q = `
		SELECT id, organization_id, name, color, description, created_at, updated_at
		FROM tags
		WHERE organization_id = $1 AND id = $2
	`
	var t model.Tag
	if err := r.db.QueryRowContext(ctx, q, organizationID, id).Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TagPostgres) AddTagToDocument(ctx context.Context, documentID, tagID string) (bool, error) {
	const q = `
		INSERT INTO documents_tags (document_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (document_id, tag_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q, documentID, tagID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *TagPostgres) RemoveAllTagsFromDocument(ctx context.Context, documentID string) error {
	const q = `DELETE FROM documents_tags WHERE document_id = $1`
	_, err := r.db.ExecContext(ctx, q, documentID)
	return err
}

func (r *TagPostgres) ListDocumentTags(ctx context.Context, documentID string) ([]model.Tag, error) {
	const q = `
		SELECT t.id, t.organization_id, t.name, t.color, t.description, t.created_at, t.updated_at
		FROM tags t
		JOIN documents_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = $1
		ORDER BY t.name
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
