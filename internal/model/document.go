package model

import "time"

// Document represents one uploaded file's metadata and its extracted text.
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	CreatedBy      *string    `json:"createdBy"`
	OriginalName   string     `json:"originalName"`
	Name           string     `json:"name"`
	MimeType       string     `json:"mimeType"`
	OriginalSize   int64      `json:"originalSize"`
	OriginalSHA256 string     `json:"originalSha256Hash"`
	StorageKey     string     `json:"-"`
	Content        string     `json:"content"`
	IsDeleted      bool       `json:"isDeleted"`
	DeletedAt      *time.Time `json:"deletedAt"`
	DeletedBy      *string    `json:"deletedBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Encryption metadata, set only when the file was stored through the encryption layer.
	FileEncryptionKeyWrapped *string `json:"-"`
	FileEncryptionAlgorithm  *string `json:"-"`
	FileEncryptionKEKVersion *string `json:"-"`
}

// DocumentUpdate is a partial update; nil fields are left untouched.
type DocumentUpdate struct {
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u DocumentUpdate) IsEmpty() bool {
	return u.Name == nil && u.Content == nil
}

// RestoreInput carries the fields rewritten when a trashed document comes back
// through a re-upload of identical content.
type RestoreInput struct {
	Name         string
	OriginalName string
	CreatedBy    *string
}

// OrganizationStats is the live storage consumption of an organization.
type OrganizationStats struct {
	DocumentsCount        int64 `json:"documentsCount"`
	DocumentsSize         int64 `json:"documentsSize"`
	DeletedDocumentsCount int64 `json:"deletedDocumentsCount"`
	DeletedDocumentsSize  int64 `json:"deletedDocumentsSize"`
	TotalDocumentsCount   int64 `json:"totalDocumentsCount"`
	TotalDocumentsSize    int64 `json:"totalDocumentsSize"`
}
