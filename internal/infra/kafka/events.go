package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
	"github.com/pulsesparkai/my-old-space/internal/infra/config"
)

const (
	schemaVersion = "1.0"

	EventUsernameClaimed = "profile.username.claimed"
	EventUsernameChanged = "profile.username.changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUsernameClaimed publishes profile.username.claimed events.
func (p *EventPublisher) PublishUsernameClaimed(ctx context.Context, event domain.UsernameClaimedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Username  string    `json:"username"`
		ClaimedAt time.Time `json:"claimed_at"`
	}{
		UserID:    event.UserID,
		Username:  event.Username,
		ClaimedAt: event.ClaimedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUsernameClaimed, event.UserID, event.ClaimedAt, payload)
}

// PublishUsernameChanged publishes profile.username.changed events.
func (p *EventPublisher) PublishUsernameChanged(ctx context.Context, event domain.UsernameChangedEvent) error {
	payload := struct {
		UserID            string    `json:"user_id"`
		OldUsername       string    `json:"old_username"`
		NewUsername       string    `json:"new_username"`
		ChangedAt         time.Time `json:"changed_at"`
		RedirectExpiresAt time.Time `json:"redirect_expires_at"`
	}{
		UserID:            event.UserID,
		OldUsername:       event.OldUsername,
		NewUsername:       event.NewUsername,
		ChangedAt:         event.ChangedAt.UTC(),
		RedirectExpiresAt: event.RedirectExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUsernameChanged, event.UserID, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
