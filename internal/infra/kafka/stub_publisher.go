package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishUsernameClaimed logs profile.username.claimed events.
func (p *StubPublisher) PublishUsernameClaimed(_ context.Context, event domain.UsernameClaimedEvent) error {
	p.logEvent(EventUsernameClaimed, event.UserID, event.ClaimedAt,
		zap.String("username", event.Username),
	)
	return nil
}

// PublishUsernameChanged logs profile.username.changed events.
func (p *StubPublisher) PublishUsernameChanged(_ context.Context, event domain.UsernameChangedEvent) error {
	p.logEvent(EventUsernameChanged, event.UserID, event.ChangedAt,
		zap.String("old_username", event.OldUsername),
		zap.String("new_username", event.NewUsername),
		zap.Time("redirect_expires_at", event.RedirectExpiresAt),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
