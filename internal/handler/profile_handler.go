package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

// ProfileHandler exposes the current user's profile.
type ProfileHandler struct {
	service *service.UserService
}

// NewProfileHandler creates a new handler.
func NewProfileHandler(svc *service.UserService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Me godoc
// @Summary Current profile
// @Description Return the authenticated user's profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile/me/ [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Update godoc
// @Summary Update profile
// @Description Apply partial profile changes, optionally replacing the photo
// @Tags Profile
// @Accept mpfd
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /profile/update/{username}/ [patch]
func (h *ProfileHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	// The photo part is optional; non-multipart requests simply carry none.
	photo, _ := c.FormFile("photo")

	user, err := h.service.UpdateProfile(c.Request.Context(), claims.UserID, c.Param("username"), req, photo)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}
