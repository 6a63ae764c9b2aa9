package port

import (
	"context"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
)

// ProfileRepository exposes persistence behavior for profiles. Usernames are unique at the store level.
type ProfileRepository interface {
	// Create inserts the profile if neither its user id nor its username exist yet.
	// A uniqueness violation surfaces as repository.ErrConflict.
	Create(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	// UpdateUsername swaps the username atomically and returns the previous value.
	UpdateUsername(ctx context.Context, userID, username string) (previous string, updated *domain.Profile, err error)
}
