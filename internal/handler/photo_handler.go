package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

// PhotoHandler wires HTTP endpoints to the photo service.
type PhotoHandler struct {
	service *service.PhotoService
	metrics *service.MetricsService
}

// NewPhotoHandler creates a new handler.
func NewPhotoHandler(svc *service.PhotoService, metrics *service.MetricsService) *PhotoHandler {
	return &PhotoHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List approved photos
// @Tags Photos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /photos/ [get]
func (h *PhotoHandler) List(c *gin.Context) {
	items, pagination, err := h.service.ListApproved(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListMine godoc
// @Summary List own photos
// @Tags Photos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /photos/me/ [get]
func (h *PhotoHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, pagination, err := h.service.ListMine(c.Request.Context(), claims.UserID, filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListPending godoc
// @Summary List pending photos
// @Tags Photos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /photos/unpublished/ [get]
func (h *PhotoHandler) ListPending(c *gin.Context) {
	items, pagination, err := h.service.ListPending(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a photo
// @Tags Photos
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} response.Envelope
// @Router /photos/{id}/ [get]
func (h *PhotoHandler) Get(c *gin.Context) {
	callerID, isAdmin := callerIdentity(c)
	item, err := h.service.Get(c.Request.Context(), callerID, isAdmin, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Submit a photo
// @Description Multipart upload with an image under "image"
// @Tags Photos
// @Accept mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /photos/ [post]
func (h *PhotoHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreatePhotoRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid photo payload"))
		return
	}

	image, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.ErrFileRequired)
		return
	}

	item, svcErr := h.service.Create(c.Request.Context(), claims.UserID, req, image)
	if svcErr != nil {
		response.Error(c, svcErr)
		return
	}

	h.metrics.RecordSubmission("photos")
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a photo
// @Tags Photos
// @Accept mpfd
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} response.Envelope
// @Router /photos/{id}/ [patch]
func (h *PhotoHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdatePhotoRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid photo payload"))
		return
	}

	image, _ := c.FormFile("image")

	item, err := h.service.Update(c.Request.Context(), claims.UserID, claims.IsAdmin(), c.Param("id"), req, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a photo
// @Tags Photos
// @Param id path string true "Photo ID"
// @Success 204 {object} response.Envelope
// @Router /photos/{id}/ [delete]
func (h *PhotoHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, claims.IsAdmin(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Moderate godoc
// @Summary Approve or reject a photo
// @Tags Photos
// @Accept json
// @Produce json
// @Param id path string true "Photo ID"
// @Param payload body dto.ModerationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /photos/unpublished/{id}/ [patch]
func (h *PhotoHandler) Moderate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid moderation payload"))
		return
	}

	item, err := h.service.Moderate(c.Request.Context(), claims.UserID, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModeration("photos", string(req.Status))
	response.JSON(c, http.StatusOK, item, nil)
}

// Download godoc
// @Summary Signed download link
// @Tags Photos
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} response.Envelope
// @Router /photos/{id}/download/ [get]
func (h *PhotoHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.DownloadURL(c.Request.Context(), claims.UserID, claims.IsAdmin(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
