package domain

import "errors"

var (
	// ErrUsernameConflict indicates another profile holds the username. The caller lost the race.
	ErrUsernameConflict = errors.New("username is already taken")
	// ErrProfileExists indicates the user already claimed a username.
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound indicates the user has no profile yet.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrStoreUnavailable wraps I/O failures from the backing store. It is transient.
	ErrStoreUnavailable = errors.New("store unavailable")
)
