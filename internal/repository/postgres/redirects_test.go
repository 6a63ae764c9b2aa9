package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/repository"
)

func TestRedirectRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRedirectRepository(mock)
	now := time.Now().UTC()
	redirect := domain.UsernameRedirect{
		OldUsername: "zoe",
		NewUsername: "zoe2",
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.DefaultRedirectTTL),
	}

	mock.ExpectExec(`INSERT INTO social\.username_redirects`).
		WithArgs("zoe", "zoe2", redirect.CreatedAt, redirect.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), redirect); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedirectRepository_FindActiveByOldUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRedirectRepository(mock)
	now := time.Now().UTC()
	rows := pgxmock.NewRows(redirectColumns).AddRow("zoe", "zoe2", now, now.Add(time.Hour))

	mock.ExpectQuery(`SELECT .*FROM social\.username_redirects WHERE old_username = \$1 AND expires_at > \$2 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("zoe", now).
		WillReturnRows(rows)

	redirect, err := repo.FindActiveByOldUsername(context.Background(), "zoe", now)
	if err != nil {
		t.Fatalf("FindActiveByOldUsername returned error: %v", err)
	}
	if redirect.NewUsername != "zoe2" {
		t.Fatalf("expected new username zoe2, got %s", redirect.NewUsername)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedirectRepository_FindActiveByOldUsernameNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRedirectRepository(mock)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM social\.username_redirects`).
		WithArgs("zoe", now).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.FindActiveByOldUsername(context.Background(), "zoe", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedirectRepository_IsReferenced(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRedirectRepository(mock)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT EXISTS \( SELECT 1 FROM social\.username_redirects WHERE \(old_username = \$1 OR new_username = \$2\) AND expires_at > \$3 \)`).
		WithArgs("zoe2", "zoe2", now).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	referenced, err := repo.IsReferenced(context.Background(), "zoe2", now)
	if err != nil {
		t.Fatalf("IsReferenced returned error: %v", err)
	}
	if !referenced {
		t.Fatalf("expected zoe2 to be referenced")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedirectRepository_PurgeExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRedirectRepository(mock)
	cutoff := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM social\.username_redirects WHERE expires_at <= \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := repo.PurgeExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
