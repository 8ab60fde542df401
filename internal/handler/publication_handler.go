package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

// PublicationHandler wires HTTP endpoints to the publication service.
type PublicationHandler struct {
	service *service.PublicationService
	metrics *service.MetricsService
}

// NewPublicationHandler creates a new handler.
func NewPublicationHandler(svc *service.PublicationService, metrics *service.MetricsService) *PublicationHandler {
	return &PublicationHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List approved publications
// @Tags Publications
// @Produce json
// @Param lake query string false "Filter by lake"
// @Param search query string false "Search title and keywords"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /publications/ [get]
func (h *PublicationHandler) List(c *gin.Context) {
	items, pagination, err := h.service.ListApproved(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListMine godoc
// @Summary List own publications
// @Tags Publications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /publications/me/ [get]
func (h *PublicationHandler) ListMine(c *gin.Context) {
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
// @Summary List pending publications
// @Description Moderation queue, admin only
// @Tags Publications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /publications/unpublished/ [get]
func (h *PublicationHandler) ListPending(c *gin.Context) {
	items, pagination, err := h.service.ListPending(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a publication
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /publications/{id}/ [get]
func (h *PublicationHandler) Get(c *gin.Context) {
	callerID, isAdmin := callerIdentity(c)
	item, err := h.service.Get(c.Request.Context(), callerID, isAdmin, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Submit a publication
// @Description Multipart upload with a PDF under "file"
// @Tags Publications
// @Accept mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /publications/ [post]
func (h *PublicationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreatePublicationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publication payload"))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.ErrFileRequired)
		return
	}

	item, svcErr := h.service.Create(c.Request.Context(), claims.UserID, req, file)
	if svcErr != nil {
		response.Error(c, svcErr)
		return
	}

	h.metrics.RecordSubmission("publications")
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a publication
// @Description Owners may edit while the record is pending
// @Tags Publications
// @Accept mpfd
// @Produce json
// @Param id path string true "Publication ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publications/{id}/ [patch]
func (h *PublicationHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdatePublicationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publication payload"))
		return
	}

	file, _ := c.FormFile("file")

	item, err := h.service.Update(c.Request.Context(), claims.UserID, claims.IsAdmin(), c.Param("id"), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a publication
// @Tags Publications
// @Param id path string true "Publication ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /publications/{id}/ [delete]
func (h *PublicationHandler) Delete(c *gin.Context) {
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
// @Summary Approve or reject a publication
// @Description Admin decision on a pending record
// @Tags Publications
// @Accept json
// @Produce json
// @Param id path string true "Publication ID"
// @Param payload body dto.ModerationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publications/unpublished/{id}/ [patch]
func (h *PublicationHandler) Moderate(c *gin.Context) {
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

	h.metrics.RecordModeration("publications", string(req.Status))
	response.JSON(c, http.StatusOK, item, nil)
}

// Download godoc
// @Summary Signed download link
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /publications/{id}/download/ [get]
func (h *PublicationHandler) Download(c *gin.Context) {
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
