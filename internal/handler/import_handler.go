package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

// ImportHandler exposes free-text teacher imports.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs an ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Submit godoc
// @Summary Queue a teacher extraction from free text
// @Tags Imports
// @Accept json
// @Produce json
// @Param payload body service.ImportRequest true "Text and apply flag"
// @Success 202 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /imports/teachers [post]
func (h *ImportHandler) Submit(c *gin.Context) {
	var req service.ImportRequest
	if !bindJSON(c, &req, "invalid import request") {
		return
	}
	status, err := h.imports.Submit(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// Status godoc
// @Summary Poll an import job
// @Tags Imports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) Status(c *gin.Context) {
	status, err := h.imports.Status(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
