package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
	"github.com/lakewatch/lakes-portal-api/pkg/storage"
)

// DownloadHandler streams stored files referenced by signed tokens.
type DownloadHandler struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
}

// NewDownloadHandler creates a new handler.
func NewDownloadHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *DownloadHandler {
	return &DownloadHandler{store: store, signer: signer}
}

// Serve godoc
// @Summary Download a stored file
// @Description Stream the file referenced by a signed token
// @Tags Downloads
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *DownloadHandler) Serve(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link"))
		return
	}

	c.FileAttachment(h.store.Path(relPath), filepath.Base(relPath))
}
