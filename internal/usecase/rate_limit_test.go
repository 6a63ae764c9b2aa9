package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/repository/memory"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type failingRateLimitStore struct{}

func (failingRateLimitStore) Consume(context.Context, string, domain.RateLimitConfig, time.Time) (domain.RateLimitEntry, bool, error) {
	return domain.RateLimitEntry{}, false, errors.New("connection refused")
}

func (failingRateLimitStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

type recordingRateLimitMetrics struct {
	allowed     int
	denied      int
	storeErrors int
	swept       int
}

func (m *recordingRateLimitMetrics) ObserveDecision(_ string, allowed bool) {
	if allowed {
		m.allowed++
		return
	}
	m.denied++
}

func (m *recordingRateLimitMetrics) IncStoreError() { m.storeErrors++ }

func (m *recordingRateLimitMetrics) AddSwept(count int) { m.swept += count }

func newTestLimiter(t *testing.T, clock *manualClock, limits map[domain.Action]domain.RateLimitConfig) *RateLimiter {
	t.Helper()
	return NewRateLimiter(memory.NewRateLimitStore(), limits).
		WithClock(clock.Now).
		WithLogger(zaptest.NewLogger(t))
}

func TestRateLimiter_AdmitsMaxThenDenies(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(t, clock, nil)
	cfg := domain.RateLimitConfig{Max: 5, Window: time.Minute}

	for i := 1; i <= cfg.Max; i++ {
		decision := limiter.CheckAndConsume(context.Background(), "user:u1:post", cfg)
		if !decision.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
		if decision.Remaining != cfg.Max-i {
			t.Fatalf("call %d: expected remaining %d, got %d", i, cfg.Max-i, decision.Remaining)
		}
		clock.Advance(time.Second)
	}

	denied := limiter.CheckAndConsume(context.Background(), "user:u1:post", cfg)
	if denied.Allowed {
		t.Fatalf("call %d should be denied", cfg.Max+1)
	}
	if denied.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", denied.Remaining)
	}
	if want := clock.now.Add(-5 * time.Second).Add(time.Minute); !denied.ResetAt.Equal(want) {
		t.Fatalf("expected reset %s, got %s", want, denied.ResetAt)
	}
}

func TestRateLimiter_WindowResetRestoresFullQuota(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(t, clock, nil)
	cfg := domain.RateLimitConfig{Max: 3, Window: time.Minute}

	for i := 0; i < 10; i++ {
		limiter.CheckAndConsume(context.Background(), "ip:10.0.0.1:comment", cfg)
	}

	clock.Advance(time.Minute)
	decision := limiter.CheckAndConsume(context.Background(), "ip:10.0.0.1:comment", cfg)
	if !decision.Allowed {
		t.Fatalf("expected fresh window to allow")
	}
	if decision.Remaining != cfg.Max-1 {
		t.Fatalf("expected remaining %d, got %d", cfg.Max-1, decision.Remaining)
	}
}

func TestRateLimiter_CheckActionCombinesUserAndIP(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(t, clock, map[domain.Action]domain.RateLimitConfig{
		domain.ActionComment: {Max: 2, Window: time.Minute},
	})
	ctx := context.Background()

	// Two different users behind the same address exhaust the IP window.
	first := limiter.CheckAction(ctx, domain.Subject{UserID: "u1", IP: "203.0.113.7"}, domain.ActionComment)
	if !first.Allowed || first.Remaining != 1 {
		t.Fatalf("unexpected first decision: %+v", first)
	}
	second := limiter.CheckAction(ctx, domain.Subject{UserID: "u2", IP: "203.0.113.7"}, domain.ActionComment)
	if !second.Allowed || second.Remaining != 0 {
		t.Fatalf("expected second decision allowed with remaining 0 from the IP window, got %+v", second)
	}

	third := limiter.CheckAction(ctx, domain.Subject{UserID: "u3", IP: "203.0.113.7"}, domain.ActionComment)
	if third.Allowed {
		t.Fatalf("expected the shared IP window to deny")
	}
	if third.LimitedBy != domain.SubjectIP {
		t.Fatalf("expected limited by ip, got %q", third.LimitedBy)
	}
}

func TestRateLimiter_CheckActionWithoutSubjectAllows(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	limiter := newTestLimiter(t, clock, nil)

	decision := limiter.CheckAction(context.Background(), domain.Subject{}, domain.ActionPost)
	if !decision.Allowed {
		t.Fatalf("expected empty subject to be allowed")
	}
	if decision.Limit != 10 || decision.Remaining != 10 {
		t.Fatalf("expected default post limit to be reported, got %+v", decision)
	}
}

func TestRateLimiter_EnforceReturnsRateLimitedError(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(t, clock, map[domain.Action]domain.RateLimitConfig{
		domain.ActionUpdateUsername: {Max: 1, Window: time.Minute},
	})
	subject := domain.Subject{UserID: "u1"}

	if _, err := limiter.Enforce(context.Background(), subject, domain.ActionUpdateUsername); err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	_, err := limiter.Enforce(context.Background(), subject, domain.ActionUpdateUsername)
	var rlErr *domain.RateLimitedError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rlErr.LimitedBy != domain.SubjectUser || !rlErr.ResetAt.Equal(clock.now.Add(time.Minute)) {
		t.Fatalf("unexpected error details: %+v", rlErr)
	}
}

func TestRateLimiter_StoreFailureFailsOpen(t *testing.T) {
	metrics := &recordingRateLimitMetrics{}
	limiter := NewRateLimiter(failingRateLimitStore{}, nil).
		WithLogger(zaptest.NewLogger(t)).
		WithMetrics(metrics)

	decision := limiter.CheckAction(context.Background(), domain.Subject{UserID: "u1", IP: "198.51.100.1"}, domain.ActionPost)
	if !decision.Allowed {
		t.Fatalf("expected store failure to fail open")
	}
	if metrics.storeErrors != 2 {
		t.Fatalf("expected two store errors, got %d", metrics.storeErrors)
	}
	if metrics.allowed != 1 {
		t.Fatalf("expected one allowed decision observed, got %d", metrics.allowed)
	}

	if _, err := limiter.Sweep(context.Background()); err == nil {
		t.Fatalf("expected sweep to surface the store error")
	}
}

func TestRateLimiter_SweepUsesClock(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)}
	metrics := &recordingRateLimitMetrics{}
	limiter := newTestLimiter(t, clock, nil).WithMetrics(metrics)
	cfg := domain.RateLimitConfig{Max: 1, Window: time.Minute}

	limiter.CheckAndConsume(context.Background(), "a", cfg)
	limiter.CheckAndConsume(context.Background(), "b", cfg)

	removed, err := limiter.Sweep(context.Background())
	if err != nil || removed != 0 {
		t.Fatalf("expected nothing swept inside the window, got %d (%v)", removed, err)
	}

	clock.Advance(time.Minute)
	removed, err = limiter.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 2 || metrics.swept != 2 {
		t.Fatalf("expected two swept entries, got %d (metrics %d)", removed, metrics.swept)
	}
}

func TestNewRateLimiter_PanicsOnInvalidLimit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero max")
		}
	}()
	NewRateLimiter(memory.NewRateLimitStore(), map[domain.Action]domain.RateLimitConfig{
		domain.ActionPost: {Max: 0, Window: time.Minute},
	})
}
