package domain

import "time"

// DefaultRedirectTTL is how long a previous username keeps resolving after a rename.
const DefaultRedirectTTL = 30 * 24 * time.Hour

// Profile mirrors the persisted representation in the profiles table.
type Profile struct {
	UserID      string
	Username    string
	DisplayName string
	Bio         string
	AvatarURL   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UsernameRedirect maps a released username to the owner's current one until ExpiresAt.
type UsernameRedirect struct {
	OldUsername string
	NewUsername string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ActiveAt reports whether the redirect still resolves at the given instant.
func (r UsernameRedirect) ActiveAt(at time.Time) bool {
	return at.Before(r.ExpiresAt)
}

// ResolutionKind enumerates the outcomes of a username lookup.
type ResolutionKind string

const (
	ResolutionActive   ResolutionKind = "active"
	ResolutionRedirect ResolutionKind = "redirect"
	ResolutionUnknown  ResolutionKind = "unknown"
)

// Resolution is the result of resolving a possibly outdated username.
type Resolution struct {
	Kind        ResolutionKind
	UserID      string
	NewUsername string
	ExpiresAt   *time.Time
}
