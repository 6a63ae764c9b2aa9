package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
	"github.com/pulsesparkai/my-old-space/internal/repository"
)

// ProfileStore is an in-process profile table with a unique username index.
// It backs local development and tests where PostgreSQL is not available.
type ProfileStore struct {
	mu         sync.RWMutex
	byUserID   map[string]domain.Profile
	byUsername map[string]string
	now        func() time.Time
}

// NewProfileStore constructs an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		byUserID:   make(map[string]domain.Profile),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

// Create inserts the profile unless the user id or username is already present.
func (s *ProfileStore) Create(_ context.Context, profile domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUserID[profile.UserID]; ok {
		return nil, repository.ErrAlreadyExists
	}
	if _, ok := s.byUsername[profile.Username]; ok {
		return nil, repository.ErrConflict
	}

	s.byUserID[profile.UserID] = profile
	s.byUsername[profile.Username] = profile.UserID
	created := profile
	return &created, nil
}

// GetByUserID returns the user's profile.
func (s *ProfileStore) GetByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.byUserID[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

// GetByUsername returns the profile currently holding username.
func (s *ProfileStore) GetByUsername(_ context.Context, username string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	profile := s.byUserID[userID]
	return &profile, nil
}

// UpdateUsername swaps the username under the write lock and returns the previous one.
func (s *ProfileStore) UpdateUsername(_ context.Context, userID, username string) (string, *domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.byUserID[userID]
	if !ok {
		return "", nil, repository.ErrNotFound
	}
	if holder, taken := s.byUsername[username]; taken && holder != userID {
		return "", nil, repository.ErrConflict
	}

	previous := profile.Username
	delete(s.byUsername, previous)
	profile.Username = username
	profile.UpdatedAt = s.now().UTC()
	s.byUserID[userID] = profile
	s.byUsername[username] = userID

	updated := profile
	return previous, &updated, nil
}

// RedirectStore keeps username redirects in insertion order.
type RedirectStore struct {
	mu        sync.RWMutex
	redirects []domain.UsernameRedirect
}

// NewRedirectStore constructs an empty redirect store.
func NewRedirectStore() *RedirectStore {
	return &RedirectStore{}
}

// Create appends a redirect.
func (s *RedirectStore) Create(_ context.Context, redirect domain.UsernameRedirect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects = append(s.redirects, redirect)
	return nil
}

// FindActiveByOldUsername returns the newest unexpired redirect away from oldUsername.
func (s *RedirectStore) FindActiveByOldUsername(_ context.Context, oldUsername string, at time.Time) (*domain.UsernameRedirect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.UsernameRedirect
	for _, r := range s.redirects {
		if r.OldUsername == oldUsername && r.ActiveAt(at) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	found := matches[0]
	return &found, nil
}

// IsReferenced reports whether an unexpired redirect names username on either side.
func (s *RedirectStore) IsReferenced(_ context.Context, username string, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.redirects {
		if (r.OldUsername == username || r.NewUsername == username) && r.ActiveAt(at) {
			return true, nil
		}
	}
	return false, nil
}

// PurgeExpired removes redirects that expired at or before the cutoff.
func (s *RedirectStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.redirects[:0]
	removed := 0
	for _, r := range s.redirects {
		if r.ActiveAt(before) {
			kept = append(kept, r)
			continue
		}
		removed++
	}
	s.redirects = kept
	return removed, nil
}

var (
	_ port.ProfileRepository  = (*ProfileStore)(nil)
	_ port.RedirectRepository = (*RedirectStore)(nil)
)
