package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
	"github.com/pulsesparkai/my-old-space/internal/repository"
)

// ErrUserIDRequired indicates the acting user identifier is missing.
var ErrUserIDRequired = errors.New("user id is required")

const defaultRedirectWriteTimeout = 5 * time.Second

// UsernameMetrics captures telemetry hooks for registry operations.
type UsernameMetrics interface {
	ObserveOperation(operation, outcome string)
	IncRedirectWriteFailure()
}

// UsernameOptions configures optional behaviours for the registry.
type UsernameOptions struct {
	RedirectTTL          time.Duration
	RedirectWriteTimeout time.Duration
}

// UsernameService validates, claims, renames and resolves usernames.
type UsernameService struct {
	profiles  port.ProfileRepository
	redirects port.RedirectRepository
	events    port.EventPublisher
	opts      UsernameOptions
	logger    *zap.Logger
	now       func() time.Time
	metrics   UsernameMetrics

	pending sync.WaitGroup
}

// NewUsernameService constructs the username registry.
func NewUsernameService(profiles port.ProfileRepository, redirects port.RedirectRepository, events port.EventPublisher, opts UsernameOptions) *UsernameService {
	if opts.RedirectTTL <= 0 {
		opts.RedirectTTL = domain.DefaultRedirectTTL
	}
	if opts.RedirectWriteTimeout <= 0 {
		opts.RedirectWriteTimeout = defaultRedirectWriteTimeout
	}
	return &UsernameService{
		profiles:  profiles,
		redirects: redirects,
		events:    events,
		opts:      opts,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// WithLogger attaches a structured logger.
func (s *UsernameService) WithLogger(logger *zap.Logger) *UsernameService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *UsernameService) WithNow(now func() time.Time) *UsernameService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics wires telemetry observers.
func (s *UsernameService) WithMetrics(metrics UsernameMetrics) *UsernameService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// Normalize canonicalises raw input.
func (s *UsernameService) Normalize(raw string) string {
	return domain.NormalizeUsername(raw)
}

// Validate checks a normalized candidate against the username rules.
func (s *UsernameService) Validate(candidate string) error {
	return domain.ValidateUsername(candidate)
}

// Availability is the advisory answer for a raw candidate.
type Availability struct {
	Username  string
	Available bool
	// Invalid is set when the normalized candidate fails validation.
	Invalid *domain.ValidationError
}

// CheckAvailability normalizes and validates raw before querying the store.
func (s *UsernameService) CheckAvailability(ctx context.Context, raw string) (Availability, error) {
	candidate := domain.NormalizeUsername(raw)
	result := Availability{Username: candidate}

	if err := domain.ValidateUsername(candidate); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			result.Invalid = vErr
			return result, nil
		}
		return result, err
	}

	available, err := s.IsAvailable(ctx, candidate)
	if err != nil {
		return result, err
	}
	result.Available = available
	return result, nil
}

// IsAvailable reports whether no profile holds candidate and no unexpired redirect names it.
// The answer is advisory; Claim and Rename rely on the store's unique index.
func (s *UsernameService) IsAvailable(ctx context.Context, candidate string) (bool, error) {
	candidate = domain.NormalizeUsername(candidate)
	if err := domain.ValidateUsername(candidate); err != nil {
		return false, nil
	}

	if _, err := s.profiles.GetByUsername(ctx, candidate); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, storeUnavailable("lookup profile", err)
	}

	referenced, err := s.redirects.IsReferenced(ctx, candidate, s.now().UTC())
	if err != nil {
		return false, storeUnavailable("lookup redirects", err)
	}
	return !referenced, nil
}

// Claim assigns the first username to userID.
func (s *UsernameService) Claim(ctx context.Context, userID, raw string) (*domain.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	candidate := domain.NormalizeUsername(raw)
	if err := domain.ValidateUsername(candidate); err != nil {
		s.observe("claim", "invalid")
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.profiles.Create(ctx, domain.Profile{
		UserID:      userID,
		Username:    candidate,
		DisplayName: candidate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.observe("claim", "conflict")
			return nil, domain.ErrUsernameConflict
		case errors.Is(err, repository.ErrAlreadyExists):
			s.observe("claim", "exists")
			return nil, domain.ErrProfileExists
		default:
			s.observe("claim", "error")
			return nil, storeUnavailable("create profile", err)
		}
	}
	s.observe("claim", "ok")

	s.logger.Info("username claimed",
		zap.String("user_id", created.UserID),
		zap.String("username", created.Username),
	)

	if s.events != nil {
		event := domain.UsernameClaimedEvent{
			EventID:   uuid.NewString(),
			UserID:    created.UserID,
			Username:  created.Username,
			ClaimedAt: now,
		}
		if pubErr := s.events.PublishUsernameClaimed(ctx, event); pubErr != nil {
			s.logger.Warn("failed to publish username claimed event", zap.String("user_id", created.UserID), zap.Error(pubErr))
		}
	}

	return created, nil
}

// Rename moves userID to a new username. The update is authoritative; the redirect from
// the previous name is written afterwards in the background and never undoes the rename.
func (s *UsernameService) Rename(ctx context.Context, userID, raw string) (*domain.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	candidate := domain.NormalizeUsername(raw)
	if err := domain.ValidateUsername(candidate); err != nil {
		s.observe("rename", "invalid")
		return nil, err
	}

	current, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.observe("rename", "not_found")
			return nil, domain.ErrProfileNotFound
		}
		s.observe("rename", "error")
		return nil, storeUnavailable("load profile", err)
	}
	if current.Username == candidate {
		s.observe("rename", "unchanged")
		return current, nil
	}

	previous, updated, err := s.profiles.UpdateUsername(ctx, userID, candidate)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.observe("rename", "conflict")
			return nil, domain.ErrUsernameConflict
		case errors.Is(err, repository.ErrNotFound):
			s.observe("rename", "not_found")
			return nil, domain.ErrProfileNotFound
		default:
			s.observe("rename", "error")
			return nil, storeUnavailable("update username", err)
		}
	}
	s.observe("rename", "ok")

	now := s.now().UTC()
	redirect := domain.UsernameRedirect{
		OldUsername: previous,
		NewUsername: updated.Username,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.RedirectTTL),
	}
	if previous != updated.Username {
		s.writeRedirectAsync(ctx, redirect)
	}

	s.logger.Info("username changed",
		zap.String("user_id", userID),
		zap.String("old_username", previous),
		zap.String("new_username", updated.Username),
	)

	if s.events != nil {
		event := domain.UsernameChangedEvent{
			EventID:           uuid.NewString(),
			UserID:            userID,
			OldUsername:       previous,
			NewUsername:       updated.Username,
			ChangedAt:         now,
			RedirectExpiresAt: redirect.ExpiresAt,
		}
		if pubErr := s.events.PublishUsernameChanged(ctx, event); pubErr != nil {
			s.logger.Warn("failed to publish username changed event", zap.String("user_id", userID), zap.Error(pubErr))
		}
	}

	return updated, nil
}

func (s *UsernameService) writeRedirectAsync(ctx context.Context, redirect domain.UsernameRedirect) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RedirectWriteTimeout)
		defer cancel()

		if err := s.redirects.Create(writeCtx, redirect); err != nil {
			if s.metrics != nil {
				s.metrics.IncRedirectWriteFailure()
			}
			s.logger.Error("failed to write username redirect",
				zap.String("old_username", redirect.OldUsername),
				zap.String("new_username", redirect.NewUsername),
				zap.Error(err),
			)
		}
	}()
}

// Drain waits for in-flight redirect writes or until ctx is done.
func (s *UsernameService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve looks a possibly outdated username up: the active holder wins, then an
// unexpired redirect, otherwise the name is unknown.
func (s *UsernameService) Resolve(ctx context.Context, raw string) (domain.Resolution, error) {
	name := domain.NormalizeUsername(raw)
	if name == "" {
		return domain.Resolution{Kind: domain.ResolutionUnknown}, nil
	}

	profile, err := s.profiles.GetByUsername(ctx, name)
	if err == nil {
		return domain.Resolution{Kind: domain.ResolutionActive, UserID: profile.UserID}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Resolution{}, storeUnavailable("lookup profile", err)
	}

	redirect, err := s.redirects.FindActiveByOldUsername(ctx, name, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Resolution{Kind: domain.ResolutionUnknown}, nil
		}
		return domain.Resolution{}, storeUnavailable("lookup redirect", err)
	}

	expiresAt := redirect.ExpiresAt
	return domain.Resolution{
		Kind:        domain.ResolutionRedirect,
		NewUsername: redirect.NewUsername,
		ExpiresAt:   &expiresAt,
	}, nil
}

// PurgeExpiredRedirects deletes redirects that no longer resolve.
func (s *UsernameService) PurgeExpiredRedirects(ctx context.Context) (int, error) {
	removed, err := s.redirects.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, storeUnavailable("purge redirects", err)
	}
	return removed, nil
}

func (s *UsernameService) observe(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, outcome)
	}
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
