package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/transport/http/middleware"
	"github.com/pulsesparkai/my-old-space/internal/usecase"
)

// RateLimitHandler lets clients that write directly to the hosted store consume a limit first.
type RateLimitHandler struct {
	limiter *usecase.RateLimiter
	now     func() time.Time
}

func NewRateLimitHandler(limiter *usecase.RateLimiter) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, now: time.Now}
}

// WithClock overrides the clock used for Retry-After.
func (h *RateLimitHandler) WithClock(now func() time.Time) *RateLimitHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// Consume godoc
// @Summary Check and consume one unit of a named action
// @Tags RateLimits
// @Produce json
// @Param action path string true "Action name"
// @Success 200 {object} RateLimitDecisionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/rate-limits/{action} [post]
func (h *RateLimitHandler) Consume(c *gin.Context) {
	action := domain.Action(c.Param("action"))
	if _, ok := h.limiter.Limit(action); !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown action"))
		return
	}

	decision := h.limiter.CheckAction(c.Request.Context(), middleware.SubjectFromContext(c), action)
	now := h.now()

	middleware.ApplyRateLimitHeaders(c, decision, now)
	if !decision.Allowed {
		middleware.RespondRateLimited(c, action, decision, now)
		return
	}

	c.JSON(http.StatusOK, RateLimitDecisionResponse{
		Action:    string(action),
		Allowed:   decision.Allowed,
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt.UTC(),
		LimitedBy: decision.LimitedBy,
	})
}
