package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint on a natural key (e.g. username) rejected the write.
	ErrConflict = errors.New("repository: unique constraint violation")
	// ErrAlreadyExists indicates the primary key is already present.
	ErrAlreadyExists = errors.New("repository: already exists")
)
