// Package events is the in-process domain event bus. Emit hands every subscribed handler to
// the worker pool and returns immediately; handler failures are logged by the pool.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docvault/internal/model"
	"docvault/internal/worker"
)

const (
	DocumentCreated  = "document.created"
	DocumentUpdated  = "document.updated"
	DocumentTrashed  = "document.trashed"
	DocumentRestored = "document.restored"
	DocumentDeleted  = "document.deleted"
)

// Event is one emitted occurrence.
type Event struct {
	Name      string    `json:"event"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emittedAt"`
}

// DocumentPayload is carried by created, trashed and restored events.
type DocumentPayload struct {
	Document *model.Document `json:"document"`
	UserID   *string         `json:"userId,omitempty"`
}

// DocumentUpdatedPayload carries the changed fields and the resulting document.
type DocumentUpdatedPayload struct {
	Document *model.Document      `json:"document"`
	Changes  model.DocumentUpdate `json:"changes"`
}

// DocumentDeletedPayload identifies a hard-deleted document.
type DocumentDeletedPayload struct {
	DocumentID     string `json:"documentId"`
	OrganizationID string `json:"organizationId"`
}

// Handler reacts to one event.
type Handler func(ctx context.Context, ev Event) error

// Submitter runs jobs asynchronously and may drop them under load. *worker.Pool satisfies it.
type Submitter interface {
	Submit(name string, job worker.Job) error
}

// Queue runs jobs asynchronously without dropping them. *worker.Pool satisfies it.
type Queue interface {
	Enqueue(name string, job worker.Job) error
}

var (
	_ Submitter = (*worker.Pool)(nil)
	_ Queue     = (*worker.Pool)(nil)
)

// Emitter is what producers depend on.
type Emitter interface {
	Emit(ctx context.Context, name string, payload any)
}

// Bus dispatches events to subscribers through a Queue.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	pool     Queue
	log      *zap.Logger
	now      func() time.Time
}

var _ Emitter = (*Bus)(nil)

func NewBus(pool Queue, log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		pool:     pool,
		log:      log.With(zap.String("component", "event_bus")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers h for every name given.
func (b *Bus) Subscribe(h Handler, names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range names {
		b.handlers[name] = append(b.handlers[name], h)
	}
}

// Emit schedules every handler of name. It does not wait for them and does not fail. A full
// queue delays handlers but never skips them; only a closed pool does, and that is logged.
func (b *Bus) Emit(_ context.Context, name string, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	ev := Event{Name: name, Payload: payload, EmittedAt: b.now()}
	b.log.Debug("event emitted", zap.String("event", name), zap.Int("handlers", len(handlers)))

	for _, h := range handlers {
		h := h
		if err := b.pool.Enqueue("event:"+name, func(ctx context.Context) error {
			return h(ctx, ev)
		}); err != nil {
			b.log.Warn("event handler not scheduled", zap.String("event", name), zap.Error(err))
		}
	}
}
