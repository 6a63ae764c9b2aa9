package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
)

// RateLimitStore keeps fixed-window counters in process memory.
type RateLimitStore struct {
	mu      sync.Mutex
	entries map[string]domain.RateLimitEntry
}

// NewRateLimitStore constructs an empty counter table.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{entries: make(map[string]domain.RateLimitEntry)}
}

// Consume admits the action when the identifier's live window has room, starting a new
// window when none is live.
func (s *RateLimitStore) Consume(_ context.Context, identifier string, cfg domain.RateLimitConfig, now time.Time) (domain.RateLimitEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identifier]
	if !ok || entry.ExpiredAt(now) {
		entry = domain.RateLimitEntry{
			Identifier: identifier,
			ResetAt:    now.Add(cfg.Window),
		}
	}

	if entry.Count >= cfg.Max {
		return entry, false, nil
	}

	entry.Count++
	s.entries[identifier] = entry
	return entry, true, nil
}

// Sweep drops every entry whose window ended at or before now.
func (s *RateLimitStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if entry.ExpiredAt(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
