package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Fatalf("expected postgres store by default, got %s", cfg.Store.Driver)
	}
	if cfg.RateLimit.Backend != "memory" {
		t.Fatalf("expected memory rate limit backend, got %s", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.ProfileComment.Max != 5 || cfg.RateLimit.ProfileComment.Window != time.Hour {
		t.Fatalf("unexpected profile_comment limit: %+v", cfg.RateLimit.ProfileComment)
	}
	if cfg.Username.RedirectTTL != 30*24*time.Hour {
		t.Fatalf("expected 30 day redirect ttl, got %s", cfg.Username.RedirectTTL)
	}
	if got := len(cfg.RateLimit.Actions()); got != 18 {
		t.Fatalf("expected 18 action limits, got %d", got)
	}
	if cfg.RateLimit.CreateReport.Max != 10 || cfg.RateLimit.CreateReport.Window != time.Minute {
		t.Fatalf("unexpected create_report limit: %+v", cfg.RateLimit.CreateReport)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("PROFILES_RATE_LIMIT_POST_MAX", "3")
	t.Setenv("PROFILES_RATE_LIMIT_POST_WINDOW", "30s")
	t.Setenv("PROFILES_STORE_DRIVER", "memory")
	t.Setenv("PROFILES_POSTGRES_HOST", "db.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.RateLimit.Post.Max != 3 || cfg.RateLimit.Post.Window != 30*time.Second {
		t.Fatalf("expected env override for post limit, got %+v", cfg.RateLimit.Post)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("expected memory driver, got %s", cfg.Store.Driver)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Fatalf("expected postgres host override, got %s", cfg.Postgres.Host)
	}
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	t.Setenv("PROFILES_RATE_LIMIT_BACKEND", "memcached")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	t.Setenv("PROFILES_APP_ENV", "production")
	t.Setenv("PROFILES_AUTH_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing secret to be rejected in production")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresSettings{User: "u", Password: "p", Host: "h", Port: 5432, Database: "d", SSLMode: "disable"}
	if got, want := p.DSN(), "postgres://u:p@h:5432/d?sslmode=disable"; got != want {
		t.Fatalf("DSN() = %s, want %s", got, want)
	}
}
