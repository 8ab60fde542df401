package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/service"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

// ExportHandler exposes admin moderation-queue reports.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Generate godoc
// @Summary Generate a moderation report
// @Description Render the pending queue of a resource as CSV or PDF
// @Tags Exports
// @Produce json
// @Param resource path string true "Resource (publications, metadata, photos, projects)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports/{resource}/ [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	result, err := h.service.Generate(c.Request.Context(), c.Param("resource"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
