package port

import (
	"context"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUsernameClaimed(ctx context.Context, event domain.UsernameClaimedEvent) error
	PublishUsernameChanged(ctx context.Context, event domain.UsernameChangedEvent) error
}
