package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

// ProjectHandler wires HTTP endpoints to the project service.
type ProjectHandler struct {
	service *service.ProjectService
	metrics *service.MetricsService
}

// NewProjectHandler creates a new handler.
func NewProjectHandler(svc *service.ProjectService, metrics *service.MetricsService) *ProjectHandler {
	return &ProjectHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List approved projects
// @Tags Projects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /projects/ [get]
func (h *ProjectHandler) List(c *gin.Context) {
	items, pagination, err := h.service.ListApproved(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListMine godoc
// @Summary List own projects
// @Tags Projects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /projects/me/ [get]
func (h *ProjectHandler) ListMine(c *gin.Context) {
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
// @Summary List pending projects
// @Tags Projects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /projects/unpublished/ [get]
func (h *ProjectHandler) ListPending(c *gin.Context) {
	items, pagination, err := h.service.ListPending(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/ [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	callerID, isAdmin := callerIdentity(c)
	item, err := h.service.Get(c.Request.Context(), callerID, isAdmin, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Submit a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body dto.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Router /projects/ [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid project payload"))
		return
	}

	item, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordSubmission("projects")
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body dto.UpdateProjectRequest true "Project changes"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/ [patch]
func (h *ProjectHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid project payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), claims.UserID, claims.IsAdmin(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a project
// @Tags Projects
// @Param id path string true "Project ID"
// @Success 204 {object} response.Envelope
// @Router /projects/{id}/ [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
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
// @Summary Approve or reject a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body dto.ModerationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /projects/unpublished/{id}/ [patch]
func (h *ProjectHandler) Moderate(c *gin.Context) {
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

	h.metrics.RecordModeration("projects", string(req.Status))
	response.JSON(c, http.StatusOK, item, nil)
}
