package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/repository/memory"
	"github.com/pulsesparkai/my-old-space/internal/usecase"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpiredRedirects(context.Context) (int, error) {
	p.calls.Add(1)
	return 0, p.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestJanitorSweepsElapsedWindows(t *testing.T) {
	store := memory.NewRateLimitStore()
	now := time.Now()
	limiter := usecase.NewRateLimiter(store, nil).WithClock(func() time.Time { return now })

	limiter.CheckAction(context.Background(), domain.Subject{UserID: "user-1", IP: "192.0.2.1"}, domain.ActionPost)
	if store.Len() != 2 {
		t.Fatalf("expected 2 counters, got %d", store.Len())
	}

	// Move the limiter clock past every window before the janitor starts.
	now = now.Add(24 * time.Hour)

	purger := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewJanitor(limiter, 5*time.Millisecond, purger, 5*time.Millisecond, zaptest.NewLogger(t)).Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return store.Len() == 0 && purger.calls.Load() > 0 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop after cancel")
	}
}

func TestJanitorKeepsRunningAfterErrors(t *testing.T) {
	purger := &countingPurger{err: errors.New("store unavailable")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewJanitor(nil, 0, purger, 5*time.Millisecond, zaptest.NewLogger(t)).Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return purger.calls.Load() >= 3 })
	cancel()
	<-done
}
