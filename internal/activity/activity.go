// Package activity appends document audit entries without blocking the caller.
package activity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docvault/internal/events"
	"docvault/internal/ids"
	"docvault/internal/model"
	"docvault/internal/repository"
)

// Log writes activity entries through the worker pool.
type Log struct {
	repo  repository.ActivityRepository
	pool  events.Submitter
	log   *zap.Logger
	newID ids.Generator
	now   func() time.Time
}

func New(repo repository.ActivityRepository, pool events.Submitter, log *zap.Logger) *Log {
	return &Log{
		repo:  repo,
		pool:  pool,
		log:   log.With(zap.String("component", "activity_log")),
		newID: ids.Prefixed("dal"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Record schedules the entry and returns immediately. A failed write is logged only.
func (l *Log) Record(_ context.Context, entry model.DocumentActivity) {
	l.stamp(&entry)
	if err := l.pool.Submit("activity:"+string(entry.Event), func(ctx context.Context) error {
		return l.write(ctx, &entry)
	}); err != nil {
		l.log.Warn("activity entry not scheduled",
			zap.String("document_id", entry.DocumentID),
			zap.String("event", string(entry.Event)),
			zap.Error(err),
		)
	}
}

func (l *Log) stamp(entry *model.DocumentActivity) {
	if entry.ID == "" {
		entry.ID = l.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
}

func (l *Log) write(ctx context.Context, entry *model.DocumentActivity) error {
	if err := l.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("record %s activity for document %s: %w", entry.Event, entry.DocumentID, err)
	}
	return nil
}

// Subscribe turns document lifecycle events into activity entries. Hard deletion is not
// recorded: the entries of a deleted document are removed with it.
func (l *Log) Subscribe(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, ev events.Event) error {
		entry, ok := entryFor(ev)
		if !ok {
			return nil
		}
		l.stamp(&entry)
		return l.write(ctx, &entry)
	}, events.DocumentCreated, events.DocumentUpdated, events.DocumentTrashed, events.DocumentRestored)
}

func entryFor(ev events.Event) (model.DocumentActivity, bool) {
	switch p := ev.Payload.(type) {
	case events.DocumentPayload:
		if p.Document == nil {
			return model.DocumentActivity{}, false
		}
		entry := model.DocumentActivity{DocumentID: p.Document.ID, UserID: p.UserID}
		switch ev.Name {
		case events.DocumentCreated:
			entry.Event = model.ActivityCreated
			if entry.UserID == nil {
				entry.UserID = p.Document.CreatedBy
			}
		case events.DocumentTrashed:
			entry.Event = model.ActivityDeleted
		case events.DocumentRestored:
			entry.Event = model.ActivityRestored
		default:
			return model.DocumentActivity{}, false
		}
		return entry, true
	case events.DocumentUpdatedPayload:
		if p.Document == nil {
			return model.DocumentActivity{}, false
		}
		var fields []string
		if p.Changes.Name != nil {
			fields = append(fields, "name")
		}
		if p.Changes.Content != nil {
			fields = append(fields, "content")
		}
		return model.DocumentActivity{
			DocumentID: p.Document.ID,
			Event:      model.ActivityUpdated,
			EventData:  map[string]any{"updatedFields": fields},
		}, true
	}
	return model.DocumentActivity{}, false
}
