package telemetry

import (
	"context"
	"log"
	"time"
)

// Publisher is the transport events are emitted through.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// EventEmitter publishes domain-event envelopes for downstream consumers.
type EventEmitter struct {
	publisher   Publisher
	service     string
	environment string
}

// EventEnvelope wraps a domain event with service metadata.
type EventEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	Payload       any    `json:"payload"`
}

// Routing keys for emitted events.
const (
	KeyMessageCreated = "messages.created"
	KeyStatusUpdated  = "messages.status_updated"
	KeyChatDeleted    = "chats.deleted"
)

func NewEventEmitter(publisher Publisher, service, environment string) *EventEmitter {
	return &EventEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// Emit publishes the payload wrapped in an envelope. Emission is
// best-effort: failures are logged, never returned.
func (e *EventEmitter) Emit(ctx context.Context, routingKey, eventType string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := EventEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, routingKey, envelope); err != nil {
		log.Printf("event publish failed: %v", err)
	}
}
