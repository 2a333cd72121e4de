package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var documentRowColumns = []string{
	"id", "organization_id", "created_by", "original_name", "name", "mime_type", "original_size",
	"original_sha256_hash", "storage_key", "content", "is_deleted", "deleted_at", "deleted_by",
	"file_encryption_key_wrapped", "file_encryption_algorithm", "file_encryption_kek_version",
	"created_at", "updated_at",
}

func documentRow(d model.Document) []driver.Value {
	var deletedAt driver.Value
	if d.DeletedAt != nil {
		deletedAt = *d.DeletedAt
	}
	return []driver.Value{
		d.ID, d.OrganizationID, nil, d.OriginalName, d.Name, d.MimeType, d.OriginalSize,
		d.OriginalSHA256, d.StorageKey, d.Content, d.IsDeleted, deletedAt, nil,
		nil, nil, nil,
		d.CreatedAt, d.UpdatedAt,
	}
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleDocument() model.Document {
	now := time.Now().UTC()
	return model.Document{
		ID:             "doc_1",
		OrganizationID: "org_1",
		OriginalName:   "a.txt",
		Name:           "a.txt",
		MimeType:       "text/plain",
		OriginalSize:   13,
		OriginalSHA256: "315f5bdb76d078c43b8ac0064e4a0164612b1fce77c869345bfc94c75894edd3",
		StorageKey:     "org_1/originals/doc_1.txt",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestDocumentPostgres_Create(t *testing.T) {
	ctx := context.Background()
	doc := sampleDocument()

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(anyArgs(18)...).
			WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(doc)...))

		got, err := repo.Create(ctx, &doc)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, doc.OriginalSHA256, got.OriginalSHA256)
		assert.Nil(t, got.FileEncryptionKeyWrapped)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation becomes conflict", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(anyArgs(18)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_organization_id_original_sha256_hash_unique"})

		got, err := repo.Create(ctx, &doc)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors pass through", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(anyArgs(18)...).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(ctx, &doc)
		assert.EqualError(t, err, "connection reset")
		assert.NotErrorIs(t, err, repository.ErrConflict)
	})
}

func TestDocumentPostgres_GetByID(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE organization_id = \\$1 AND id = \\$2").
			WithArgs("org_1", "doc_1").
			WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(sampleDocument())...))

		doc, err := repo.GetByID(ctx, "org_1", "doc_1")
		require.NoError(t, err)
		assert.Equal(t, "doc_1", doc.ID)
		assert.Equal(t, "org_1/originals/doc_1.txt", doc.StorageKey)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE organization_id = \\$1 AND id = \\$2").
			WithArgs("org_2", "doc_1").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.GetByID(ctx, "org_2", "doc_1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_GetBySha256Hash(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	deleted := sampleDocument()
	deletedAt := time.Now().UTC()
	deleted.IsDeleted = true
	deleted.DeletedAt = &deletedAt

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE organization_id = \\$1 AND original_sha256_hash = \\$2").
		WithArgs("org_1", deleted.OriginalSHA256).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(deleted)...))

	doc, err := repo.GetBySha256Hash(ctx, "org_1", deleted.OriginalSHA256)
	require.NoError(t, err)
	assert.True(t, doc.IsDeleted)
	require.NotNil(t, doc.DeletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE organization_id = \\$1 AND is_deleted = \\$2").
		WithArgs("org_1", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM documents (.+) ORDER BY created_at DESC, id DESC (.+)").
		WithArgs("org_1", false, 10, 0).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(sampleDocument())...))

	res, err := repo.List(ctx, "org_1", repository.PageQuery{Limit: 10, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "doc_1", res.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Update(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	updated := sampleDocument()
	updated.Name = "renamed.txt"
	name := "renamed.txt"

	mock.ExpectQuery("UPDATE documents").
		WithArgs("org_1", "doc_1", name, nil).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(updated)...))

	doc, err := repo.Update(ctx, "org_1", "doc_1", model.DocumentUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", doc.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_TrashAndRestore(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	at := time.Now().UTC()
	user := "user_1"
	trashed := sampleDocument()
	trashed.IsDeleted = true
	trashed.DeletedAt = &at

	mock.ExpectQuery("UPDATE documents\\s+SET is_deleted = TRUE").
		WithArgs("org_1", "doc_1", at, user).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(trashed)...))

	doc, err := repo.Trash(ctx, "org_1", "doc_1", &user, at)
	require.NoError(t, err)
	assert.True(t, doc.IsDeleted)

	// A second trash keeps the first deletion time.
	mock.ExpectQuery("deleted_at = CASE WHEN is_deleted THEN deleted_at ELSE \\$3 END").
		WithArgs("org_1", "doc_1", at.Add(time.Hour), nil).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(trashed)...))
	doc, err = repo.Trash(ctx, "org_1", "doc_1", nil, at.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, doc.DeletedAt)
	assert.True(t, doc.DeletedAt.Equal(at))

	restored := sampleDocument()
	restored.Name = "b.txt"
	restored.OriginalName = "b.txt"
	mock.ExpectQuery("UPDATE documents\\s+SET is_deleted = FALSE").
		WithArgs("org_1", "doc_1", "b.txt", "b.txt", nil).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(restored)...))

	doc, err = repo.Restore(ctx, "org_1", "doc_1", model.RestoreInput{Name: "b.txt", OriginalName: "b.txt"})
	require.NoError(t, err)
	assert.False(t, doc.IsDeleted)
	assert.Equal(t, "b.txt", doc.Name)

	mock.ExpectQuery("UPDATE documents\\s+SET is_deleted = TRUE").
		WithArgs("org_1", "missing", at, nil).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Trash(ctx, "org_1", "missing", nil, at)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Delete(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM documents WHERE organization_id = \\$1 AND id = \\$2").
			WithArgs("org_1", "doc_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, "org_1", "doc_1"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM documents WHERE organization_id = \\$1 AND id = \\$2").
			WithArgs("org_1", "doc_9").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, "org_1", "doc_9"), repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_GetOrganizationStats(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	mock.ExpectQuery("SELECT (.+) FROM documents\\s+WHERE organization_id = \\$1").
		WithArgs("org_1").
		WillReturnRows(sqlmock.NewRows([]string{"c", "s", "dc", "ds"}).AddRow(3, 300, 1, 50))

	stats, err := repo.GetOrganizationStats(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrganizationStats{
		DocumentsCount:        3,
		DocumentsSize:         300,
		DeletedDocumentsCount: 1,
		DeletedDocumentsSize:  50,
		TotalDocumentsCount:   4,
		TotalDocumentsSize:    350,
	}, *stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_GetExpiredDeletedDocuments(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM documents\\s+WHERE is_deleted = TRUE AND deleted_at < \\$1").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	docs, err := repo.GetExpiredDeletedDocuments(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_IterateOrganizationDocuments(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)

	d1, d2, d3 := sampleDocument(), sampleDocument(), sampleDocument()
	d1.ID, d2.ID, d3.ID = "doc_1", "doc_2", "doc_3"

	mock.ExpectQuery("SELECT (.+) FROM documents\\s+WHERE organization_id = \\$1 AND is_deleted = FALSE\\s+ORDER BY created_at, id").
		WithArgs("org_1", 2).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(d1)...).AddRow(documentRow(d2)...))
	mock.ExpectQuery("SELECT (.+) AND \\(created_at, id\\) > \\(\\$3, \\$4\\)").
		WithArgs("org_1", 2, d2.CreatedAt, "doc_2").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(documentRow(d3)...))

	var seen []string
	err := repo.IterateOrganizationDocuments(ctx, "org_1", 2, func(page []model.Document) error {
		for _, d := range page {
			seen = append(seen, d.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_1", "doc_2", "doc_3"}, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}
