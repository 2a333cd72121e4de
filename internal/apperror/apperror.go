// Package apperror defines the error taxonomy shared by the service and HTTP layers.
// Every expected failure carries a stable (code, message, status) triple; anything else
// is rendered as a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error with a machine-readable code and the HTTP status it maps to.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code, so wrapped copies still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of e that wraps cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, StatusCode: e.StatusCode, cause: cause}
}

// New builds a domain error.
func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, StatusCode: status}
}

var (
	ErrDocumentAlreadyExists           = New("document.already_exists", "Document already exists", http.StatusConflict)
	ErrDocumentSizeTooLarge            = New("document.size_too_large", "Document size too large", http.StatusRequestEntityTooLarge)
	ErrOrganizationStorageLimitReached = New("organization.storage_limit_reached", "Organization storage limit reached", http.StatusRequestEntityTooLarge)
	ErrDocumentNotFound                = New("document.not_found", "Document not found", http.StatusNotFound)
	ErrDocumentNotDeleted              = New("document.not_deleted", "Document is not deleted, cannot be permanently removed", http.StatusBadRequest)
	ErrTaggingRuleNotFound             = New("tagging_rule.not_found", "Tagging rule not found", http.StatusNotFound)
	ErrTagNotFound                     = New("tag.not_found", "Tag not found", http.StatusNotFound)
	ErrFileNotFound                    = New("storage.file_not_found", "File not found", http.StatusNotFound)
	ErrFileAlreadyExists               = New("storage.file_already_exists", "File already exists", http.StatusConflict)
	ErrInvalidInput                    = New("validation.invalid_input", "Invalid input", http.StatusBadRequest)
	ErrInternal                        = New("internal", "Internal server error", http.StatusInternalServerError)
)

// From returns the domain error wrapped in err, or ErrInternal when err is not a domain error.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
