// Package webhook delivers event notifications to an external HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"docvault/internal/config"
	"docvault/internal/events"
)

// Webhook event names sent in addition to the document lifecycle events.
const (
	EventDocumentTagAdded = "document:tag:added"
)

// Message is the JSON body posted to the endpoint.
type Message struct {
	Event          string    `json:"event"`
	OrganizationID string    `json:"organizationId"`
	Payload        any       `json:"payload"`
	SentAt         time.Time `json:"sentAt"`
}

// Client posts messages to the configured URL. With no URL configured every send is a no-op.
type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// New builds a client with a traced transport.
func New(cfg config.WebhookConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url: cfg.URL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log.With(zap.String("component", "webhook")),
	}
}

// Enabled reports whether a destination is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

// Send posts one message and treats any non-2xx answer as a failure.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return nil
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook %s: %w", msg.Event, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "docvault-webhook")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook %s: %w", msg.Event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver webhook %s: unexpected status %d", msg.Event, resp.StatusCode)
	}
	return nil
}

// Trigger is the fire-and-forget entry point used by the ingestion pipeline: the send runs on
// the worker pool and its failure is only logged.
type Trigger struct {
	client *Client
	pool   events.Submitter
}

func NewTrigger(client *Client, pool events.Submitter) *Trigger {
	return &Trigger{client: client, pool: pool}
}

// TriggerWebhooks schedules delivery of event for the organization.
func (t *Trigger) TriggerWebhooks(_ context.Context, organizationID, event string, payload any) {
	if !t.client.Enabled() {
		return
	}
	msg := Message{Event: event, OrganizationID: organizationID, Payload: payload}
	if err := t.pool.Submit("webhook:"+event, func(ctx context.Context) error {
		return t.client.Send(ctx, msg)
	}); err != nil {
		t.client.log.Warn("webhook not scheduled", zap.String("event", event), zap.Error(err))
	}
}

// Subscribe forwards document lifecycle events from the bus to the endpoint.
func (t *Trigger) Subscribe(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, ev events.Event) error {
		if !t.client.Enabled() {
			return nil
		}
		return t.client.Send(ctx, Message{
			Event:          ev.Name,
			OrganizationID: organizationOf(ev.Payload),
			Payload:        ev.Payload,
			SentAt:         ev.EmittedAt,
		})
	}, events.DocumentCreated, events.DocumentUpdated, events.DocumentTrashed, events.DocumentRestored, events.DocumentDeleted)
}

func organizationOf(payload any) string {
	switch p := payload.(type) {
	case events.DocumentPayload:
		if p.Document != nil {
			return p.Document.OrganizationID
		}
	case events.DocumentUpdatedPayload:
		if p.Document != nil {
			return p.Document.OrganizationID
		}
	case events.DocumentDeletedPayload:
		return p.OrganizationID
	}
	return ""
}
