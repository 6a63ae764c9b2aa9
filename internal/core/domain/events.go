package domain

import "time"

// UsernameClaimedEvent represents the payload for profile.username.claimed messages.
type UsernameClaimedEvent struct {
	EventID   string
	UserID    string
	Username  string
	ClaimedAt time.Time
}

// UsernameChangedEvent represents the payload for profile.username.changed messages.
type UsernameChangedEvent struct {
	EventID           string
	UserID            string
	OldUsername       string
	NewUsername       string
	ChangedAt         time.Time
	RedirectExpiresAt time.Time
}
