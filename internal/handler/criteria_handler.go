package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

// CriteriaHandler exposes custom criteria, hidden criteria and special report templates.
type CriteriaHandler struct {
	criteria *service.CriteriaService
}

// NewCriteriaHandler constructs a CriteriaHandler.
func NewCriteriaHandler(criteria *service.CriteriaService) *CriteriaHandler {
	return &CriteriaHandler{criteria: criteria}
}

// ListCustom godoc
// @Summary List custom criteria for an evaluation type
// @Tags Criteria
// @Produce json
// @Param evaluationType query string true "Evaluation type"
// @Param reportId query string false "Include criteria local to this report"
// @Success 200 {object} response.Envelope
// @Router /criteria/custom [get]
func (h *CriteriaHandler) ListCustom(c *gin.Context) {
	items, err := h.criteria.ListCustom(c.Request.Context(), sessionFromContext(c),
		models.EvaluationType(c.Query("evaluationType")), c.Query("reportId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AddCustom godoc
// @Summary Add a custom criterion
// @Tags Criteria
// @Accept json
// @Produce json
// @Param payload body service.CustomCriterionInput true "Criterion"
// @Success 201 {object} response.Envelope
// @Router /criteria/custom [post]
func (h *CriteriaHandler) AddCustom(c *gin.Context) {
	var req service.CustomCriterionInput
	if !bindJSON(c, &req, "invalid criterion payload") {
		return
	}
	item, err := h.criteria.AddCustom(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// DeleteCustom godoc
// @Summary Delete a custom criterion
// @Tags Criteria
// @Param id path string true "Criterion ID"
// @Success 204
// @Router /criteria/custom/{id} [delete]
func (h *CriteriaHandler) DeleteCustom(c *gin.Context) {
	if err := h.criteria.DeleteCustom(c.Request.Context(), sessionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListHidden godoc
// @Summary List hidden default criteria
// @Tags Criteria
// @Produce json
// @Param evaluationType query string true "Evaluation type"
// @Success 200 {object} response.Envelope
// @Router /criteria/hidden [get]
func (h *CriteriaHandler) ListHidden(c *gin.Context) {
	items, err := h.criteria.ListHidden(c.Request.Context(), sessionFromContext(c), models.EvaluationType(c.Query("evaluationType")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Hide godoc
// @Summary Hide a default criterion
// @Tags Criteria
// @Accept json
// @Param payload body service.HiddenCriterionInput true "Criterion to hide"
// @Success 204
// @Router /criteria/hidden [post]
func (h *CriteriaHandler) Hide(c *gin.Context) {
	h.setHidden(c, true)
}

// Unhide godoc
// @Summary Restore a hidden default criterion
// @Tags Criteria
// @Accept json
// @Param payload body service.HiddenCriterionInput true "Criterion to restore"
// @Success 204
// @Router /criteria/hidden/restore [post]
func (h *CriteriaHandler) Unhide(c *gin.Context) {
	h.setHidden(c, false)
}

func (h *CriteriaHandler) setHidden(c *gin.Context, hidden bool) {
	var req service.HiddenCriterionInput
	if !bindJSON(c, &req, "invalid hidden criterion payload") {
		return
	}
	if err := h.criteria.SetHidden(c.Request.Context(), sessionFromContext(c), req, hidden); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTemplates godoc
// @Summary List special report templates
// @Tags Criteria
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *CriteriaHandler) ListTemplates(c *gin.Context) {
	items, err := h.criteria.ListTemplates(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateTemplate godoc
// @Summary Create a special report template
// @Tags Criteria
// @Accept json
// @Produce json
// @Param payload body service.TemplateInput true "Template"
// @Success 201 {object} response.Envelope
// @Router /templates [post]
func (h *CriteriaHandler) CreateTemplate(c *gin.Context) {
	var req service.TemplateInput
	if !bindJSON(c, &req, "invalid template payload") {
		return
	}
	item, err := h.criteria.SaveTemplate(c.Request.Context(), sessionFromContext(c), "", req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateTemplate godoc
// @Summary Replace a special report template
// @Tags Criteria
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.TemplateInput true "Template"
// @Success 200 {object} response.Envelope
// @Router /templates/{id} [put]
func (h *CriteriaHandler) UpdateTemplate(c *gin.Context) {
	var req service.TemplateInput
	if !bindJSON(c, &req, "invalid template payload") {
		return
	}
	item, err := h.criteria.SaveTemplate(c.Request.Context(), sessionFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteTemplate godoc
// @Summary Delete a special report template
// @Tags Criteria
// @Param id path string true "Template ID"
// @Success 204
// @Router /templates/{id} [delete]
func (h *CriteriaHandler) DeleteTemplate(c *gin.Context) {
	if err := h.criteria.DeleteTemplate(c.Request.Context(), sessionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
