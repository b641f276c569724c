package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

// SyllabusHandler exposes syllabus plans and coverage reports.
type SyllabusHandler struct {
	syllabus *service.SyllabusService
}

// NewSyllabusHandler constructs a SyllabusHandler.
func NewSyllabusHandler(syllabus *service.SyllabusService) *SyllabusHandler {
	return &SyllabusHandler{syllabus: syllabus}
}

// ListPlans godoc
// @Summary List syllabus plans
// @Tags Syllabus
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /syllabus/plans [get]
func (h *SyllabusHandler) ListPlans(c *gin.Context) {
	plans, err := h.syllabus.ListPlans(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// GetPlan godoc
// @Summary Get syllabus plan
// @Tags Syllabus
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /syllabus/plans/{id} [get]
func (h *SyllabusHandler) GetPlan(c *gin.Context) {
	plan, err := h.syllabus.GetPlan(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// CreatePlan godoc
// @Summary Create syllabus plan
// @Tags Syllabus
// @Accept json
// @Produce json
// @Param payload body service.SyllabusPlanInput true "Plan"
// @Success 201 {object} response.Envelope
// @Router /syllabus/plans [post]
func (h *SyllabusHandler) CreatePlan(c *gin.Context) {
	var req service.SyllabusPlanInput
	if !bindJSON(c, &req, "invalid syllabus plan payload") {
		return
	}
	plan, err := h.syllabus.SavePlan(c.Request.Context(), sessionFromContext(c), "", req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// UpdatePlan godoc
// @Summary Replace syllabus plan
// @Tags Syllabus
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.SyllabusPlanInput true "Plan"
// @Success 200 {object} response.Envelope
// @Router /syllabus/plans/{id} [put]
func (h *SyllabusHandler) UpdatePlan(c *gin.Context) {
	var req service.SyllabusPlanInput
	if !bindJSON(c, &req, "invalid syllabus plan payload") {
		return
	}
	plan, err := h.syllabus.SavePlan(c.Request.Context(), sessionFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// DeletePlan godoc
// @Summary Delete syllabus plan
// @Tags Syllabus
// @Param id path string true "Plan ID"
// @Success 204
// @Router /syllabus/plans/{id} [delete]
func (h *SyllabusHandler) DeletePlan(c *gin.Context) {
	if err := h.syllabus.DeletePlan(c.Request.Context(), sessionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListCoverage godoc
// @Summary List syllabus coverage reports, newest first
// @Tags Syllabus
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /syllabus/coverage [get]
func (h *SyllabusHandler) ListCoverage(c *gin.Context) {
	reports, err := h.syllabus.ListCoverage(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// GetCoverage godoc
// @Summary Get syllabus coverage report
// @Tags Syllabus
// @Produce json
// @Param id path string true "Coverage report ID"
// @Success 200 {object} response.Envelope
// @Router /syllabus/coverage/{id} [get]
func (h *SyllabusHandler) GetCoverage(c *gin.Context) {
	report, err := h.syllabus.GetCoverage(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CreateCoverage godoc
// @Summary Record syllabus coverage; statuses are computed against the plan
// @Tags Syllabus
// @Accept json
// @Produce json
// @Param payload body service.CoverageReportInput true "Coverage report"
// @Success 201 {object} response.Envelope
// @Router /syllabus/coverage [post]
func (h *SyllabusHandler) CreateCoverage(c *gin.Context) {
	var req service.CoverageReportInput
	if !bindJSON(c, &req, "invalid coverage report payload") {
		return
	}
	report, err := h.syllabus.CreateCoverage(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// UpdateCoverage godoc
// @Summary Replace syllabus coverage report
// @Tags Syllabus
// @Accept json
// @Produce json
// @Param id path string true "Coverage report ID"
// @Param payload body service.CoverageReportInput true "Coverage report"
// @Success 200 {object} response.Envelope
// @Router /syllabus/coverage/{id} [put]
func (h *SyllabusHandler) UpdateCoverage(c *gin.Context) {
	var req service.CoverageReportInput
	if !bindJSON(c, &req, "invalid coverage report payload") {
		return
	}
	report, err := h.syllabus.UpdateCoverage(c.Request.Context(), sessionFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// DeleteCoverage godoc
// @Summary Delete syllabus coverage report
// @Tags Syllabus
// @Param id path string true "Coverage report ID"
// @Success 204
// @Router /syllabus/coverage/{id} [delete]
func (h *SyllabusHandler) DeleteCoverage(c *gin.Context) {
	if err := h.syllabus.DeleteCoverage(c.Request.Context(), sessionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
