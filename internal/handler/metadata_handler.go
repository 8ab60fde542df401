package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

// MetadataHandler wires HTTP endpoints to the metadata service.
type MetadataHandler struct {
	service *service.MetadataService
	metrics *service.MetricsService
}

// NewMetadataHandler creates a new handler.
func NewMetadataHandler(svc *service.MetadataService, metrics *service.MetricsService) *MetadataHandler {
	return &MetadataHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List approved metadata records
// @Tags Metadata
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metadata/ [get]
func (h *MetadataHandler) List(c *gin.Context) {
	items, pagination, err := h.service.ListApproved(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListMine godoc
// @Summary List own metadata records
// @Tags Metadata
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metadata/me/ [get]
func (h *MetadataHandler) ListMine(c *gin.Context) {
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
// @Summary List pending metadata records
// @Tags Metadata
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metadata/unpublished/ [get]
func (h *MetadataHandler) ListPending(c *gin.Context) {
	items, pagination, err := h.service.ListPending(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a metadata record
// @Tags Metadata
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /metadata/{id}/ [get]
func (h *MetadataHandler) Get(c *gin.Context) {
	callerID, isAdmin := callerIdentity(c)
	item, err := h.service.Get(c.Request.Context(), callerID, isAdmin, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Submit a metadata record
// @Tags Metadata
// @Accept mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /metadata/ [post]
func (h *MetadataHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateMetadataRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload"))
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

	h.metrics.RecordSubmission("metadata")
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a metadata record
// @Tags Metadata
// @Accept mpfd
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /metadata/{id}/ [patch]
func (h *MetadataHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateMetadataRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload"))
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
// @Summary Delete a metadata record
// @Tags Metadata
// @Param id path string true "Record ID"
// @Success 204 {object} response.Envelope
// @Router /metadata/{id}/ [delete]
func (h *MetadataHandler) Delete(c *gin.Context) {
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
// @Summary Approve or reject a metadata record
// @Tags Metadata
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.ModerationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /metadata/unpublished/{id}/ [patch]
func (h *MetadataHandler) Moderate(c *gin.Context) {
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

	h.metrics.RecordModeration("metadata", string(req.Status))
	response.JSON(c, http.StatusOK, item, nil)
}

// Download godoc
// @Summary Signed download link
// @Tags Metadata
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /metadata/{id}/download/ [get]
func (h *MetadataHandler) Download(c *gin.Context) {
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
