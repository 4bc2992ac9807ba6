// Package events provides the outbound event port for scoring and
// benchmark side effects. Correctness of the core never depends on a
// subscriber: publishers are fire-and-forget.
package events

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType identifies an outbound event.
type EventType string

const (
	// EventScoreCalculated fires after a health score record is persisted.
	EventScoreCalculated EventType = "score.calculated"
	// EventTenantAtRisk fires when a scoring run classifies a tenant HIGH.
	EventTenantAtRisk EventType = "tenant.at_risk"
	// EventBenchmarkCompleted fires after a nightly aggregation run.
	EventBenchmarkCompleted EventType = "benchmark.completed"
)

// Event is one outbound notification.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       EventType              `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// NewEvent creates an event stamped at the current time.
func NewEvent(eventType EventType, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
}

// Publisher delivers events to interested subscribers.
type Publisher interface {
	Publish(event Event)
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(Event) {}

// WebhookPublisher POSTs events to a single endpoint, signed with
// HMAC-SHA256. Delivery is asynchronous and best-effort.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewWebhookPublisher creates a publisher for the given endpoint.
func NewWebhookPublisher(url, secret string, logger zerolog.Logger) *WebhookPublisher {
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish delivers the event in a background goroutine. Failures are
// logged and dropped.
func (p *WebhookPublisher) Publish(event Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.deliver(event)
	}()
}

// Close waits for in-flight deliveries to finish.
func (p *WebhookPublisher) Close() {
	p.wg.Wait()
}

func (p *WebhookPublisher) deliver(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("marshal event")
		return
	}

	req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		p.logger.Error().Err(err).Msg("build event request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-TenantPulse-Event", string(event.Type))
	req.Header.Set("X-TenantPulse-Signature", p.sign(body))

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("event delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		p.logger.Warn().
			Int("status", resp.StatusCode).
			Str("event_type", string(event.Type)).
			Msg("event endpoint returned non-success")
		return
	}

	p.logger.Debug().Str("event_type", string(event.Type)).Msg("event delivered")
}

// sign computes the hex HMAC-SHA256 of the body.
func (p *WebhookPublisher) sign(body []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
