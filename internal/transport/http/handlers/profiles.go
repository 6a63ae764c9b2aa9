package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/usecase"
)

const profilePathPrefix = "/api/v1/profiles/"

// ProfileHandler resolves public profile URLs.
type ProfileHandler struct {
	registry *usecase.UsernameService
	now      func() time.Time
}

func NewProfileHandler(registry *usecase.UsernameService) *ProfileHandler {
	return &ProfileHandler{registry: registry, now: time.Now}
}

// WithClock overrides the clock used for redirect cache lifetimes.
func (h *ProfileHandler) WithClock(now func() time.Time) *ProfileHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// Resolve godoc
// @Summary Resolve a possibly outdated username
// @Description Active names return the owner. Recently released names answer 307 with the new profile location, cacheable only until the redirect expires.
// @Tags Profiles
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} ResolutionResponse
// @Success 307 {object} ResolutionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/profiles/{username} [get]
func (h *ProfileHandler) Resolve(c *gin.Context) {
	name := domain.NormalizeUsername(c.Param("username"))

	resolution, err := h.registry.Resolve(c.Request.Context(), name)
	if err != nil {
		RespondWithMappedError(c, err, registryErrorCases, http.StatusInternalServerError, "failed to resolve username")
		return
	}

	switch resolution.Kind {
	case domain.ResolutionActive:
		c.JSON(http.StatusOK, ResolutionResponse{
			Status:   string(resolution.Kind),
			Username: name,
			UserID:   resolution.UserID,
		})
	case domain.ResolutionRedirect:
		c.Header("Location", profilePathPrefix+url.PathEscape(resolution.NewUsername))
		c.Header("Cache-Control", redirectCacheControl(resolution.ExpiresAt, h.now()))
		c.JSON(http.StatusTemporaryRedirect, ResolutionResponse{
			Status:      string(resolution.Kind),
			Username:    name,
			NewUsername: resolution.NewUsername,
			ExpiresAt:   resolution.ExpiresAt,
		})
	default:
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "profile not found"))
	}
}

// redirectCacheControl keeps clients from following a redirect after it expires.
func redirectCacheControl(expiresAt *time.Time, now time.Time) string {
	if expiresAt == nil {
		return "no-store"
	}
	seconds := int64(expiresAt.Sub(now) / time.Second)
	if seconds <= 0 {
		return "no-store"
	}
	return "private, max-age=" + strconv.FormatInt(seconds, 10)
}
