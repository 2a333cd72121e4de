package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// ActivityPostgres appends to document_activity_log.
type ActivityPostgres struct {
	db *sql.DB
}

func NewActivityPostgres(db *sql.DB) *ActivityPostgres {
	return &ActivityPostgres{db: db}
}

var _ repository.ActivityRepository = (*ActivityPostgres)(nil)

func (r *ActivityPostgres) Create(ctx context.Context, entry *model.DocumentActivity) error {
	var data sql.NullString
	if entry.EventData != nil {
		b, err := json.Marshal(entry.EventData)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	const q = `
		INSERT INTO document_activity_log (id, document_id, event, event_data, user_id, tag_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, q,
		entry.ID,
		entry.DocumentID,
		string(entry.Event),
		data,
		entry.UserID,
		entry.TagID,
		entry.CreatedAt,
	)
	return err
}
