package model

import "time"

// ActivityEvent is the kind of a document activity log entry.
type ActivityEvent string

const (
	ActivityCreated  ActivityEvent = "created"
	ActivityUpdated  ActivityEvent = "updated"
	ActivityDeleted  ActivityEvent = "deleted"
	ActivityRestored ActivityEvent = "restored"
	ActivityTagged   ActivityEvent = "tagged"
	ActivityUntagged ActivityEvent = "untagged"
)

// DocumentActivity is an append-only audit record for a document.
type DocumentActivity struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	Event      ActivityEvent  `json:"event"`
	EventData  map[string]any `json:"eventData,omitempty"`
	UserID     *string        `json:"userId"`
	TagID      *string        `json:"tagId"`
	CreatedAt  time.Time      `json:"createdAt"`
}
