package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/export"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type exporter interface {
	Export(ctx context.Context, sess *models.Session, req service.ExportRequest) (*service.ExportResult, error)
	Download(ctx context.Context, token string) (*service.ExportResult, error)
}

// ExportHandler renders documents and serves signed downloads.
type ExportHandler struct {
	exports exporter
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports exporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
// @Summary Render a report or aggregate as txt, csv, pdf, xlsx or a share link
// @Tags Exports
// @Accept json
// @Produce json,octet-stream
// @Param payload body service.ExportRequest true "Export request"
// @Success 200 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Export(c *gin.Context) {
	var req service.ExportRequest
	if !bindJSON(c, &req, "invalid export request") {
		return
	}
	result, err := h.exports.Export(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Format == export.FormatShare || result.URL != "" {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Content)
}

// Download godoc
// @Summary Download a stored export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	result, err := h.exports.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Content)
}
