package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsesparkai/my-old-space/internal/transport/http/middleware"
	"github.com/pulsesparkai/my-old-space/internal/usecase"
)

// UsernameHandler exposes availability, claim and rename endpoints.
type UsernameHandler struct {
	registry *usecase.UsernameService
}

func NewUsernameHandler(registry *usecase.UsernameService) *UsernameHandler {
	return &UsernameHandler{registry: registry}
}

// Availability godoc
// @Summary Check whether a username can be claimed
// @Tags Usernames
// @Produce json
// @Param username path string true "Candidate username"
// @Success 200 {object} AvailabilityResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/usernames/{username}/availability [get]
func (h *UsernameHandler) Availability(c *gin.Context) {
	result, err := h.registry.CheckAvailability(c.Request.Context(), c.Param("username"))
	if err != nil {
		RespondWithMappedError(c, err, registryErrorCases, http.StatusInternalServerError, "failed to check availability")
		return
	}

	resp := AvailabilityResponse{
		Username:  result.Username,
		Available: result.Available,
		Valid:     result.Invalid == nil,
	}
	if result.Invalid != nil {
		resp.Reason = string(result.Invalid.Reason)
		resp.Message = result.Invalid.Message()
	}
	c.JSON(http.StatusOK, resp)
}

// Claim godoc
// @Summary Claim the caller's first username
// @Tags Usernames
// @Accept json
// @Produce json
// @Param request body UsernameRequest true "Username"
// @Success 201 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/usernames [post]
func (h *UsernameHandler) Claim(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid username payload"))
		return
	}

	profile, err := h.registry.Claim(c.Request.Context(), userID, req.Username)
	if err != nil {
		RespondWithMappedError(c, err, registryErrorCases, http.StatusInternalServerError, "failed to claim username")
		return
	}

	c.JSON(http.StatusCreated, newProfileResponse(profile))
}

// Rename godoc
// @Summary Change the caller's username
// @Description The previous username redirects to the new one for 30 days.
// @Tags Usernames
// @Accept json
// @Produce json
// @Param request body UsernameRequest true "Username"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/profile/username [put]
func (h *UsernameHandler) Rename(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid username payload"))
		return
	}

	profile, err := h.registry.Rename(c.Request.Context(), userID, req.Username)
	if err != nil {
		RespondWithMappedError(c, err, registryErrorCases, http.StatusInternalServerError, "failed to change username")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(profile))
}
