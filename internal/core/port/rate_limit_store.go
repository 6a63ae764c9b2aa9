package port

import (
	"context"
	"time"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
)

// RateLimitStore persists fixed-window counters. Consume must be atomic per identifier:
// it starts a fresh window when none is live, increments while count < max, and leaves
// the counter untouched when the window is exhausted.
type RateLimitStore interface {
	Consume(ctx context.Context, identifier string, cfg domain.RateLimitConfig, now time.Time) (domain.RateLimitEntry, bool, error)
	// Sweep removes entries whose window ended at or before now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
