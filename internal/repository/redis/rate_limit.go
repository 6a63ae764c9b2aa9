package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
)

// fixedWindowScript performs the whole check-and-increment inside Redis so concurrent
// instances never observe a partially updated window.
//
// KEYS[1] counter hash, ARGV[1] now (ms), ARGV[2] max, ARGV[3] window (ms).
// Returns {allowed, count, reset_at_ms}.
var fixedWindowScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'count', 'reset_at')
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local count = tonumber(state[1] or '0') or 0
local reset = tonumber(state[2] or '0') or 0

if reset <= now then
  count = 0
  reset = now + window
  redis.call('HSET', KEYS[1], 'count', 0, 'reset_at', reset)
  redis.call('PEXPIRE', KEYS[1], window)
end

if count >= max then
  return {0, count, reset}
end

count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, count, reset}
`)

// FixedWindowConfig defines configuration for the shared fixed-window store.
type FixedWindowConfig struct {
	KeyPrefix string
}

// RateLimitRepository persists fixed-window counters in Redis hashes.
type RateLimitRepository struct {
	client *redis.Client
	cfg    FixedWindowConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *redis.Client, cfg FixedWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// Consume atomically admits or denies one action for identifier.
func (r *RateLimitRepository) Consume(ctx context.Context, identifier string, cfg domain.RateLimitConfig, now time.Time) (domain.RateLimitEntry, bool, error) {
	values, err := fixedWindowScript.Run(ctx, r.client,
		[]string{r.key(identifier)},
		now.UnixMilli(),
		cfg.Max,
		cfg.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domain.RateLimitEntry{}, false, fmt.Errorf("redis fixed window: %w", err)
	}
	if len(values) != 3 {
		return domain.RateLimitEntry{}, false, fmt.Errorf("redis fixed window: unexpected reply length %d", len(values))
	}

	entry := domain.RateLimitEntry{
		Identifier: identifier,
		Count:      int(values[1]),
		ResetAt:    time.UnixMilli(values[2]).UTC(),
	}
	return entry, values[0] == 1, nil
}

// Sweep is a no-op: every counter carries a PEXPIRE equal to its window.
func (r *RateLimitRepository) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
