package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
)

// RateLimitMetrics captures telemetry hooks for limiter decisions.
type RateLimitMetrics interface {
	ObserveDecision(action string, allowed bool)
	IncStoreError()
	AddSwept(count int)
}

// RateLimiter admits or denies write actions using fixed windows per identifier.
type RateLimiter struct {
	store   port.RateLimitStore
	limits  map[domain.Action]domain.RateLimitConfig
	logger  *zap.Logger
	now     func() time.Time
	metrics RateLimitMetrics
	tracer  trace.Tracer
}

// NewRateLimiter constructs a limiter over the given store. Every configured limit must
// be valid; a malformed limit is a programming error and panics.
func NewRateLimiter(store port.RateLimitStore, limits map[domain.Action]domain.RateLimitConfig) *RateLimiter {
	merged := domain.DefaultActionLimits()
	for action, cfg := range limits {
		merged[action] = cfg
	}
	for action, cfg := range merged {
		mustValidate(string(action), cfg)
	}

	return &RateLimiter{
		store:  store,
		limits: merged,
		logger: zap.NewNop(),
		now:    time.Now,
		tracer: otel.Tracer("github.com/pulsesparkai/my-old-space/internal/usecase"),
	}
}

// WithLogger attaches a structured logger.
func (l *RateLimiter) WithLogger(logger *zap.Logger) *RateLimiter {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithClock overrides the clock, primarily for deterministic testing.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// WithMetrics wires telemetry observers.
func (l *RateLimiter) WithMetrics(metrics RateLimitMetrics) *RateLimiter {
	if metrics != nil {
		l.metrics = metrics
	}
	return l
}

// Limit returns the configured limit for action.
func (l *RateLimiter) Limit(action domain.Action) (domain.RateLimitConfig, bool) {
	cfg, ok := l.limits[action]
	return cfg, ok
}

// CheckAndConsume admits the action for identifier if its live window has room and
// records it. A denied call leaves the stored count unchanged. Store failures fail open.
func (l *RateLimiter) CheckAndConsume(ctx context.Context, identifier string, cfg domain.RateLimitConfig) domain.Decision {
	mustValidate(identifier, cfg)

	now := l.now()
	entry, allowed, err := l.store.Consume(ctx, identifier, cfg, now)
	if err != nil {
		l.logger.Warn("rate limit store failed, allowing request",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		if l.metrics != nil {
			l.metrics.IncStoreError()
		}
		return domain.Decision{
			Identifier: identifier,
			Allowed:    true,
			Limit:      cfg.Max,
			Remaining:  cfg.Max - 1,
			ResetAt:    now.Add(cfg.Window),
		}
	}

	remaining := cfg.Max - entry.Count
	if !allowed || remaining < 0 {
		remaining = 0
	}

	return domain.Decision{
		Identifier: identifier,
		Allowed:    allowed,
		Limit:      cfg.Max,
		Remaining:  remaining,
		ResetAt:    entry.ResetAt,
	}
}

// CheckAction checks the user and IP identifiers of subject for action and combines the
// results. Empty subject fields are skipped. Both windows are consumed even when the
// first one denies, so every decision reflects a single logical attempt per identifier.
func (l *RateLimiter) CheckAction(ctx context.Context, subject domain.Subject, action domain.Action) domain.Decision {
	cfg, ok := l.limits[action]
	if !ok {
		panic(fmt.Sprintf("rate limit: no limit configured for action %q", action))
	}

	ctx, span := l.tracer.Start(ctx, "RateLimiter.CheckAction",
		trace.WithAttributes(attribute.String("ratelimit.action", string(action))),
	)
	defer span.End()

	decisions := make([]domain.Decision, 0, 2)
	if subject.UserID != "" {
		d := l.CheckAndConsume(ctx, domain.RateLimitIdentifier(domain.SubjectUser, subject.UserID, action), cfg)
		d.LimitedBy = domain.SubjectUser
		decisions = append(decisions, d)
	}
	if subject.IP != "" {
		d := l.CheckAndConsume(ctx, domain.RateLimitIdentifier(domain.SubjectIP, subject.IP, action), cfg)
		d.LimitedBy = domain.SubjectIP
		decisions = append(decisions, d)
	}

	decision := domain.CombineDecisions(decisions...)
	if len(decisions) == 0 {
		decision.Limit = cfg.Max
		decision.Remaining = cfg.Max
	}

	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", decision.Allowed),
		attribute.Int("ratelimit.remaining", decision.Remaining),
	)
	if l.metrics != nil {
		l.metrics.ObserveDecision(string(action), decision.Allowed)
	}
	if !decision.Allowed {
		l.logger.Info("rate limit exceeded",
			zap.String("action", string(action)),
			zap.String("limited_by", decision.LimitedBy),
			zap.Time("reset_at", decision.ResetAt),
		)
	}

	return decision
}

// Enforce runs CheckAction and converts a denial into a *domain.RateLimitedError.
func (l *RateLimiter) Enforce(ctx context.Context, subject domain.Subject, action domain.Action) (domain.Decision, error) {
	decision := l.CheckAction(ctx, subject, action)
	if decision.Allowed {
		return decision, nil
	}
	return decision, &domain.RateLimitedError{
		Action:    action,
		LimitedBy: decision.LimitedBy,
		ResetAt:   decision.ResetAt,
	}
}

// Sweep removes counters whose window has elapsed.
func (l *RateLimiter) Sweep(ctx context.Context) (int, error) {
	removed, err := l.store.Sweep(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("sweep rate limits: %w", err)
	}
	if l.metrics != nil && removed > 0 {
		l.metrics.AddSwept(removed)
	}
	return removed, nil
}

func mustValidate(name string, cfg domain.RateLimitConfig) {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("rate limit %q: %v", name, err))
	}
}
