package port

import (
	"context"
	"time"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
)

// RedirectRepository stores username redirects created by renames.
type RedirectRepository interface {
	Create(ctx context.Context, redirect domain.UsernameRedirect) error
	// FindActiveByOldUsername returns the newest redirect away from oldUsername that is
	// unexpired at the given instant, or repository.ErrNotFound.
	FindActiveByOldUsername(ctx context.Context, oldUsername string, at time.Time) (*domain.UsernameRedirect, error)
	// IsReferenced reports whether any unexpired redirect names username as its old or new value.
	IsReferenced(ctx context.Context, username string, at time.Time) (bool, error)
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}
