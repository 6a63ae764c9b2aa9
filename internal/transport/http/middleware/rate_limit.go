package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
)

const (
	rateLimitProblemType  = "https://api.myoldspace.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// ActionLimiter is the limiter surface the middleware depends on.
type ActionLimiter interface {
	Limit(action domain.Action) (domain.RateLimitConfig, bool)
	CheckAction(ctx context.Context, subject domain.Subject, action domain.Action) domain.Decision
}

// RateLimiter turns limiter decisions into HTTP headers and 429 responses.
type RateLimiter struct {
	limiter ActionLimiter
	logger  *zap.Logger
	now     func() time.Time
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(limiter ActionLimiter, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// RateLimit returns a Gin middleware that consumes one unit of action for the
// authenticated user and the client IP. It panics when action has no configured limit.
func (rl *RateLimiter) RateLimit(action domain.Action) gin.HandlerFunc {
	if _, ok := rl.limiter.Limit(action); !ok {
		panic(fmt.Sprintf("rate limit middleware: unknown action %q", action))
	}

	return func(c *gin.Context) {
		decision := rl.limiter.CheckAction(c.Request.Context(), SubjectFromContext(c), action)
		now := rl.now()

		ApplyRateLimitHeaders(c, decision, now)
		if !decision.Allowed {
			rl.logger.Debug("request rate limited",
				zap.String("action", string(action)),
				zap.String("limited_by", decision.LimitedBy),
				zap.String("trace_id", GetTraceID(c)),
			)
			RespondRateLimited(c, action, decision, now)
			return
		}

		c.Next()
	}
}

// SubjectFromContext builds the limiter subject from the authenticated user and client IP.
func SubjectFromContext(c *gin.Context) domain.Subject {
	userID, _ := GetAuthenticatedUserID(c)
	return domain.Subject{
		UserID: userID,
		IP:     c.ClientIP(),
	}
}

// ApplyRateLimitHeaders writes the X-RateLimit-* headers and, on denial, Retry-After.
func ApplyRateLimitHeaders(c *gin.Context, decision domain.Decision, now time.Time) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
	if !decision.ResetAt.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}

	if !decision.Allowed {
		headers.Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision, now)))
	}
}

// RespondRateLimited aborts the request with a 429 problem document.
func RespondRateLimited(c *gin.Context, action domain.Action, decision domain.Decision, now time.Time) {
	retrySeconds := retryAfterSeconds(decision, now)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retrySeconds),
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
		Extensions: map[string]any{
			"action":     string(action),
			"limited_by": decision.LimitedBy,
			"reset_at":   decision.ResetAt.UTC().Format(time.RFC3339),
		},
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, problem)
}

func retryAfterSeconds(decision domain.Decision, now time.Time) int {
	return int(math.Ceil(decision.RetryAfter(now).Seconds()))
}
