package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists the outcome of every dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsernameRequest carries a raw username candidate.
type UsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

// AvailabilityResponse is the advisory answer for a candidate.
type AvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:      p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ResolutionResponse describes the outcome of resolving a username.
type ResolutionResponse struct {
	Status      string     `json:"status"`
	Username    string     `json:"username"`
	UserID      string     `json:"user_id,omitempty"`
	NewUsername string     `json:"new_username,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// RateLimitDecisionResponse mirrors a limiter decision.
type RateLimitDecisionResponse struct {
	Action    string    `json:"action"`
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	LimitedBy string    `json:"limited_by,omitempty"`
}
