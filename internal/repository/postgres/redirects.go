package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
	"github.com/pulsesparkai/my-old-space/internal/repository"
)

const redirectsTable = "social.username_redirects"

var redirectColumns = []string{
	"old_username",
	"new_username",
	"created_at",
	"expires_at",
}

// RedirectRepository implements port.RedirectRepository using PostgreSQL.
type RedirectRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRedirectRepository constructs a redirect repository.
func NewRedirectRepository(exec pgExecutor) *RedirectRepository {
	return &RedirectRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create appends a redirect row. Older redirects for the same name are kept; lookups pick the newest.
func (r *RedirectRepository) Create(ctx context.Context, redirect domain.UsernameRedirect) error {
	stmt, args, err := r.builder.Insert(redirectsTable).
		Columns(redirectColumns...).
		Values(redirect.OldUsername, redirect.NewUsername, redirect.CreatedAt, redirect.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert redirect sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert redirect: %w", err)
	}
	return nil
}

// FindActiveByOldUsername returns the newest redirect away from oldUsername that is unexpired at the given instant.
func (r *RedirectRepository) FindActiveByOldUsername(ctx context.Context, oldUsername string, at time.Time) (*domain.UsernameRedirect, error) {
	stmt, args, err := r.builder.
		Select(redirectColumns...).
		From(redirectsTable).
		Where(squirrel.Eq{"old_username": oldUsername}).
		Where(squirrel.Gt{"expires_at": at}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select redirect sql: %w", err)
	}

	var redirect domain.UsernameRedirect
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&redirect.OldUsername,
		&redirect.NewUsername,
		&redirect.CreatedAt,
		&redirect.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan redirect: %w", err)
	}

	return &redirect, nil
}

// IsReferenced reports whether an unexpired redirect points from or to username.
func (r *RedirectRepository) IsReferenced(ctx context.Context, username string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From(redirectsTable).
		Where(squirrel.Or{
			squirrel.Eq{"old_username": username},
			squirrel.Eq{"new_username": username},
		}).
		Where(squirrel.Gt{"expires_at": at}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build redirect exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("query redirect exists: %w", err)
	}
	return exists, nil
}

// PurgeExpired deletes redirects that stopped resolving at or before the cutoff.
func (r *RedirectRepository) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(redirectsTable).
		Where(squirrel.LtOrEq{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge redirects sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge redirects: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ port.RedirectRepository = (*RedirectRepository)(nil)
