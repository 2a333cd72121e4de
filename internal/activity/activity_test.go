package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docvault/internal/events"
	"docvault/internal/model"
	"docvault/internal/repository/memory"
	"docvault/internal/worker"
)

func TestLog_RecordAndSubscribe(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	creator := "user_1"
	doc, err := store.Documents().Create(ctx, &model.Document{ID: "doc_1", OrganizationID: "org_1", OriginalSHA256: "h", CreatedBy: &creator})
	require.NoError(t, err)

	pool := worker.New(1, 16, zap.NewNop())
	bus := events.NewBus(pool, zap.NewNop())
	log := New(store.Activity(), pool, zap.NewNop())
	log.Subscribe(bus)

	tagID := "tag_1"
	log.Record(ctx, model.DocumentActivity{DocumentID: "doc_1", Event: model.ActivityTagged, TagID: &tagID})
	bus.Emit(ctx, events.DocumentCreated, events.DocumentPayload{Document: doc})
	name := "renamed"
	bus.Emit(ctx, events.DocumentUpdated, events.DocumentUpdatedPayload{Document: doc, Changes: model.DocumentUpdate{Name: &name}})
	bus.Emit(ctx, events.DocumentDeleted, events.DocumentDeletedPayload{DocumentID: "doc_1", OrganizationID: "org_1"})

	require.NoError(t, pool.Shutdown(ctx))

	entries := store.ActivityEntries()
	require.Len(t, entries, 3)

	byEvent := make(map[model.ActivityEvent]model.DocumentActivity)
	for _, e := range entries {
		assert.Regexp(t, `^dal_`, e.ID)
		assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Minute)
		byEvent[e.Event] = e
	}
	assert.Equal(t, &tagID, byEvent[model.ActivityTagged].TagID)
	assert.Equal(t, &creator, byEvent[model.ActivityCreated].UserID)
	assert.Equal(t, []string{"name"}, byEvent[model.ActivityUpdated].EventData["updatedFields"])
}

func TestLog_FailedWriteIsNotPropagated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pool := worker.New(1, 4, zap.NewNop())
	log := New(store.Activity(), pool, zap.NewNop())

	assert.NotPanics(t, func() {
		log.Record(ctx, model.DocumentActivity{DocumentID: "missing", Event: model.ActivityTagged})
	})
	require.NoError(t, pool.Shutdown(ctx))
	assert.Empty(t, store.ActivityEntries())
}
