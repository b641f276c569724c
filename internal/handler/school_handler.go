package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type schoolRequest struct {
	Name string `json:"name" binding:"required"`
}

type renameSchoolRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type optionsRequest struct {
	Values []string `json:"values"`
}

// SchoolHandler exposes schools and per-feature dropdown options.
type SchoolHandler struct {
	schools *service.SchoolService
	options *service.OptionsService
}

// NewSchoolHandler constructs a SchoolHandler.
func NewSchoolHandler(schools *service.SchoolService, options *service.OptionsService) *SchoolHandler {
	return &SchoolHandler{schools: schools, options: options}
}

// List godoc
// @Summary List schools (public, used by the login screen)
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.schools.List(c.Request.Context()), nil)
}

// Add godoc
// @Summary Add school
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body schoolRequest true "School"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *SchoolHandler) Add(c *gin.Context) {
	var req schoolRequest
	if !bindJSON(c, &req, "invalid school payload") {
		return
	}
	if err := h.schools.Add(c.Request.Context(), sessionFromContext(c), req.Name); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.schools.List(c.Request.Context()))
}

// Rename godoc
// @Summary Rename school and retag every record carrying it
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body renameSchoolRequest true "Rename"
// @Success 200 {object} response.Envelope
// @Router /schools/rename [post]
func (h *SchoolHandler) Rename(c *gin.Context) {
	var req renameSchoolRequest
	if !bindJSON(c, &req, "invalid rename payload") {
		return
	}
	retagged, err := h.schools.Rename(c.Request.Context(), sessionFromContext(c), req.From, req.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"retagged": retagged}, nil)
}

// GetOptions godoc
// @Summary Get a dropdown option list
// @Tags Options
// @Produce json
// @Param name path string true "Option list name"
// @Success 200 {object} response.Envelope
// @Router /options/{name} [get]
func (h *SchoolHandler) GetOptions(c *gin.Context) {
	values, err := h.options.Get(c.Request.Context(), sessionFromContext(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

// SetOptions godoc
// @Summary Replace a dropdown option list
// @Tags Options
// @Accept json
// @Produce json
// @Param name path string true "Option list name"
// @Param payload body optionsRequest true "Values"
// @Success 200 {object} response.Envelope
// @Router /options/{name} [put]
func (h *SchoolHandler) SetOptions(c *gin.Context) {
	var req optionsRequest
	if !bindJSON(c, &req, "invalid options payload") {
		return
	}
	values, err := h.options.Set(c.Request.Context(), sessionFromContext(c), c.Param("name"), req.Values)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}
