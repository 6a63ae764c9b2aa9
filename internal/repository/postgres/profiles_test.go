package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/repository"
)

func profileRows(p domain.Profile) *pgxmock.Rows {
	return pgxmock.NewRows(profileColumns).AddRow(
		p.UserID, p.Username, p.DisplayName, p.Bio, p.AvatarURL, p.CreatedAt, p.UpdatedAt,
	)
}

func newTestProfile(now time.Time) domain.Profile {
	return domain.Profile{
		UserID:      "user-1",
		Username:    "zoe",
		DisplayName: "Zoe",
		Bio:         "",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestProfileRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)
	profile := newTestProfile(time.Now().UTC())

	mock.ExpectQuery(`INSERT INTO social\.profiles`).
		WithArgs(profile.UserID, profile.Username, profile.DisplayName, profile.Bio, pgxmock.AnyArg(), profile.CreatedAt, profile.UpdatedAt).
		WillReturnRows(profileRows(profile))

	created, err := repo.Create(context.Background(), profile)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Username != "zoe" || created.UserID != "user-1" {
		t.Fatalf("unexpected profile: %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_CreateMapsUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "username taken", constraint: profilesUsernameIndex, want: repository.ErrConflict},
		{name: "user already has profile", constraint: profilesPrimaryKey, want: repository.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("pgxmock.NewPool: %v", err)
			}
			defer mock.Close()

			repo := NewProfileRepository(mock)
			mock.ExpectQuery(`INSERT INTO social\.profiles`).
				WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: tt.constraint})

			_, err = repo.Create(context.Background(), newTestProfile(time.Now().UTC()))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestProfileRepository_GetByUsernameNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)
	mock.ExpectQuery(`SELECT .*FROM social\.profiles WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByUsername(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)
	profile := newTestProfile(time.Now().UTC())
	mock.ExpectQuery(`SELECT .*FROM social\.profiles WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(profileRows(profile))

	got, err := repo.GetByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByUserID returned error: %v", err)
	}
	if got.Username != profile.Username {
		t.Fatalf("expected username %s, got %s", profile.Username, got.Username)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_UpdateUsernameReturnsPrevious(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)
	updated := newTestProfile(time.Now().UTC())
	updated.Username = "zoe2"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT username FROM social\.profiles WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"username"}).AddRow("zoe"))
	mock.ExpectQuery(`UPDATE social\.profiles SET username = \$1, updated_at = NOW\(\) WHERE user_id = \$2 RETURNING`).
		WithArgs("zoe2", "user-1").
		WillReturnRows(profileRows(updated))
	mock.ExpectCommit()

	previous, profile, err := repo.UpdateUsername(context.Background(), "user-1", "zoe2")
	if err != nil {
		t.Fatalf("UpdateUsername returned error: %v", err)
	}
	if previous != "zoe" {
		t.Fatalf("expected previous zoe, got %s", previous)
	}
	if profile.Username != "zoe2" {
		t.Fatalf("expected updated username zoe2, got %s", profile.Username)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_UpdateUsernameConflictRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT username FROM social\.profiles`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"username"}).AddRow("zoe"))
	mock.ExpectQuery(`UPDATE social\.profiles`).
		WithArgs("taken", "user-1").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: profilesUsernameIndex})
	mock.ExpectRollback()

	if _, _, err := repo.UpdateUsername(context.Background(), "user-1", "taken"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_UpdateUsernameMissingProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT username FROM social\.profiles`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if _, _, err := repo.UpdateUsername(context.Background(), "nobody", "zoe"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
