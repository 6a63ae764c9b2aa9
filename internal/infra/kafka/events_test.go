package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "profiles"}, zaptest.NewLogger(t))
	t.Cleanup(func() {
		_ = producer.Close()
	})

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "profile-service",
		Env:  "test",
	}, zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func TestPublishUsernameChanged(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	changedAt := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	event := domain.UsernameChangedEvent{
		EventID:           "event-123",
		UserID:            "user-789",
		OldUsername:       "zoe",
		NewUsername:       "zoe2",
		ChangedAt:         changedAt,
		RedirectExpiresAt: changedAt.Add(domain.DefaultRedirectTTL),
	}

	if err := publisher.PublishUsernameChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishUsernameChanged returned error: %v", err)
	}

	msg := <-asyncProducer.input
	if msg.Topic != "profiles.profile.username.changed" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "user-789" {
		t.Fatalf("expected message keyed by user id, got %s", key)
	}

	value, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("encode value: %v", err)
	}

	var envelope struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		Payload   struct {
			OldUsername       string    `json:"old_username"`
			NewUsername       string    `json:"new_username"`
			RedirectExpiresAt time.Time `json:"redirect_expires_at"`
		} `json:"payload"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	if envelope.EventID != "event-123" || envelope.EventType != EventUsernameChanged {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
	if envelope.Payload.OldUsername != "zoe" || envelope.Payload.NewUsername != "zoe2" {
		t.Fatalf("unexpected payload: %+v", envelope.Payload)
	}
	if !envelope.Payload.RedirectExpiresAt.Equal(event.RedirectExpiresAt) {
		t.Fatalf("unexpected redirect expiry: %s", envelope.Payload.RedirectExpiresAt)
	}
	if envelope.Metadata["service"] != "profile-service" {
		t.Fatalf("expected service metadata, got %v", envelope.Metadata)
	}
}

func TestPublishUsernameClaimedGeneratesEventID(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	if err := publisher.PublishUsernameClaimed(context.Background(), domain.UsernameClaimedEvent{UserID: "user-1", Username: "zoe"}); err != nil {
		t.Fatalf("PublishUsernameClaimed returned error: %v", err)
	}

	msg := <-asyncProducer.input
	value, _ := msg.Value.Encode()
	var envelope struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.EventID == "" {
		t.Fatalf("expected generated event id")
	}
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)
	asyncProducer.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := publisher.PublishUsernameClaimed(ctx, domain.UsernameClaimedEvent{UserID: "user-1", Username: "zoe"}); err == nil {
		t.Fatalf("expected context error when the input channel is full")
	}
}

func TestTopicName(t *testing.T) {
	p := &Producer{cfg: config.KafkaSettings{TopicPrefix: "profiles"}}
	if got := p.TopicName("profiles.x"); got != "profiles.x" {
		t.Fatalf("expected prefix not duplicated, got %s", got)
	}
	p.cfg.TopicPrefix = ""
	if got := p.TopicName("x"); got != "x" {
		t.Fatalf("expected bare topic, got %s", got)
	}
}

func TestStubPublisherLogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stub := NewStubPublisher(zap.New(core))

	if err := stub.PublishUsernameChanged(context.Background(), domain.UsernameChangedEvent{UserID: "u1", OldUsername: "a", NewUsername: "b"}); err != nil {
		t.Fatalf("PublishUsernameChanged returned error: %v", err)
	}

	entries := logs.FilterField(zap.String("event_type", EventUsernameChanged)).All()
	if len(entries) != 1 {
		t.Fatalf("expected one logged event, got %d", len(entries))
	}
}
