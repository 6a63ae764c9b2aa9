package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
	"github.com/pulsesparkai/my-old-space/internal/repository"
)

const (
	profilesTable         = "social.profiles"
	profilesPrimaryKey    = "profiles_pkey"
	profilesUsernameIndex = "profiles_username_key"
)

var profileColumns = []string{
	"user_id",
	"username",
	"display_name",
	"bio",
	"avatar_url",
	"created_at",
	"updated_at",
}

// ProfileRepository implements port.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProfileRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	return &ProfileRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new profile row. The unique index on username is the authoritative claim check.
func (r *ProfileRepository) Create(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	stmt, args, err := r.builder.Insert(profilesTable).
		Columns(profileColumns...).
		Values(
			profile.UserID,
			profile.Username,
			profile.DisplayName,
			profile.Bio,
			profile.AvatarURL,
			profile.CreatedAt,
			profile.UpdatedAt,
		).
		Suffix("RETURNING " + strings.Join(profileColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert profile sql: %w", err)
	}

	created, err := scanProfile(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if constraint == profilesPrimaryKey {
				return nil, fmt.Errorf("insert profile: %w", repository.ErrAlreadyExists)
			}
			return nil, fmt.Errorf("insert profile: %w", repository.ErrConflict)
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	return created, nil
}

// GetByUserID retrieves the profile owned by the user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	return r.getBy(ctx, squirrel.Eq{"user_id": userID})
}

// GetByUsername retrieves the profile currently holding the username.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	return r.getBy(ctx, squirrel.Eq{"username": username})
}

func (r *ProfileRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.Profile, error) {
	stmt, args, err := r.builder.
		Select(profileColumns...).
		From(profilesTable).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	profile, err := scanProfile(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	return profile, nil
}

// UpdateUsername locks the owner's row, swaps the username and returns the previous value.
func (r *ProfileRepository) UpdateUsername(ctx context.Context, userID, username string) (string, *domain.Profile, error) {
	tx, err := r.exec.Begin(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("begin username update: %w", err)
	}
	rollback := func() {
		_ = tx.Rollback(ctx)
	}

	lockStmt, lockArgs, err := r.builder.
		Select("username").
		From(profilesTable).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		rollback()
		return "", nil, fmt.Errorf("build lock profile sql: %w", err)
	}

	var previous string
	if err := tx.QueryRow(ctx, lockStmt, lockArgs...).Scan(&previous); err != nil {
		rollback()
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, repository.ErrNotFound
		}
		return "", nil, fmt.Errorf("lock profile: %w", err)
	}

	updateStmt, updateArgs, err := r.builder.Update(profilesTable).
		Set("username", username).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("RETURNING " + strings.Join(profileColumns, ", ")).
		ToSql()
	if err != nil {
		rollback()
		return "", nil, fmt.Errorf("build update username sql: %w", err)
	}

	updated, err := scanProfile(tx.QueryRow(ctx, updateStmt, updateArgs...))
	if err != nil {
		rollback()
		if _, ok := uniqueConstraint(err); ok {
			return "", nil, fmt.Errorf("update username: %w", repository.ErrConflict)
		}
		return "", nil, fmt.Errorf("update username: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return "", nil, fmt.Errorf("commit username update: %w", repository.ErrConflict)
		}
		return "", nil, fmt.Errorf("commit username update: %w", err)
	}

	return previous, updated, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var profile domain.Profile
	if err := row.Scan(
		&profile.UserID,
		&profile.Username,
		&profile.DisplayName,
		&profile.Bio,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

var _ port.ProfileRepository = (*ProfileRepository)(nil)
