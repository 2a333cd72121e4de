// Package tasks schedules named background jobs and dispatches them to registered handlers.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"docvault/internal/config"
)

// Job names.
const (
	ExtractDocumentFileContent  = "extract-document-file-content"
	ApplyTaggingRuleToDocuments = "apply-tagging-rule-to-documents"
)

// ExtractDocumentFileContentData is the payload of ExtractDocumentFileContent.
type ExtractDocumentFileContentData struct {
	DocumentID     string   `json:"documentId"`
	OrganizationID string   `json:"organizationId"`
	OCRLanguages   []string `json:"ocrLanguages,omitempty"`
}

// ApplyTaggingRuleToDocumentsData is the payload of ApplyTaggingRuleToDocuments.
type ApplyTaggingRuleToDocumentsData struct {
	OrganizationID string `json:"organizationId"`
	TaggingRuleID  string `json:"taggingRuleId"`
}

// Scheduler registers a job for asynchronous execution.
type Scheduler interface {
	ScheduleJob(ctx context.Context, name string, data any) error
}

// Runner is a Scheduler that also executes the jobs it accepted.
type Runner interface {
	Scheduler
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// Envelope is the serialized form of a scheduled job.
type Envelope struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data"`
	ScheduledAt time.Time       `json:"scheduledAt"`
}

func newEnvelope(name string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s job data: %w", name, err)
	}
	return Envelope{
		ID:          uuid.NewString(),
		Name:        name,
		Data:        raw,
		ScheduledAt: time.Now().UTC(),
	}, nil
}

// Handler executes one job from its raw payload.
type Handler func(ctx context.Context, data json.RawMessage) error

// Handle adapts a typed job function into a Handler.
func Handle[T any](fn func(ctx context.Context, data T) error) Handler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var data T
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode job data: %w", err)
		}
		return fn(ctx, data)
	}
}

var tracer = otel.Tracer("docvault/internal/tasks")

// Registry maps job names to handlers. Handlers may be registered after the scheduler
// was built, as long as it happens before Start.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch runs the handler registered for env.Name inside a job span.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for job %q", env.Name)
	}

	ctx, span := tracer.Start(ctx, "job "+env.Name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", env.ID),
			attribute.String("job.name", env.Name),
		),
	)
	defer span.End()

	if err := h(ctx, env.Data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// New builds the runner selected by cfg.Tasks.Driver.
func New(cfg *config.AppConfig, registry *Registry, log *zap.Logger) (Runner, error) {
	switch cfg.Tasks.Driver {
	case "", "memory":
		return NewMemory(registry, cfg.Tasks.Workers, cfg.Ingestion.SideEffectQueueSize, log), nil
	case "redis":
		client, err := NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedis(client, cfg.Redis.Queue, registry, cfg.Tasks.Workers, log), nil
	default:
		return nil, fmt.Errorf("unknown tasks driver %q", cfg.Tasks.Driver)
	}
}
