package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("create document: %w", ErrDocumentAlreadyExists.WithCause(errors.New("unique violation")))

	assert.ErrorIs(t, wrapped, ErrDocumentAlreadyExists)
	assert.NotErrorIs(t, wrapped, ErrDocumentNotFound)
	assert.Contains(t, wrapped.Error(), "unique violation")
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "domain error",
			err:        ErrOrganizationStorageLimitReached,
			wantCode:   "organization.storage_limit_reached",
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "wrapped domain error",
			err:        fmt.Errorf("trash: %w", ErrDocumentNotFound),
			wantCode:   "document.not_found",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "plain error becomes internal",
			err:        errors.New("connection reset"),
			wantCode:   "internal",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
		})
	}
}
