package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/transport/http/middleware"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		resp := NewErrorResponse(c, vErr.Message())
		resp.Reason = string(vErr.Reason)
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var limited *domain.RateLimitedError
	if errors.As(err, &limited) {
		middleware.RespondRateLimited(c, limited.Action, domain.Decision{
			LimitedBy: limited.LimitedBy,
			ResetAt:   limited.ResetAt,
		}, time.Now())
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

var registryErrorCases = []ErrorCase{
	{Err: domain.ErrUsernameConflict, Status: http.StatusConflict, Message: "username is already taken"},
	{Err: domain.ErrProfileExists, Status: http.StatusConflict, Message: "username already claimed"},
	{Err: domain.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
	{Err: domain.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "profile store unavailable, try again"},
}
