package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type dashboardReader interface {
	Overview(ctx context.Context, sess *models.Session) (*dto.DashboardOverview, bool, error)
	Aggregate(ctx context.Context, sess *models.Session, filter models.ReportFilter) (*dto.AggregateTable, bool, error)
	Analysis(ctx context.Context, sess *models.Session, filter models.ReportFilter) ([]dto.CriterionAnalysis, bool, error)
	Performance(ctx context.Context, sess *models.Session, filter models.ReportFilter) (*dto.PerformanceSummary, bool, error)
}

// DashboardHandler exposes the aggregated views.
type DashboardHandler struct {
	dashboard dashboardReader
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(dashboard dashboardReader) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Overview godoc
// @Summary Counts for the selected school
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	result, hit, err := h.dashboard.Overview(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, withCacheMeta(c, hit))
}

// Aggregate godoc
// @Summary Per-teacher aggregated percentages
// @Tags Dashboard
// @Produce json
// @Param from query string false "Earliest date"
// @Param to query string false "Latest date"
// @Param evaluationType query string false "Evaluation type"
// @Param teacherId query []string false "Teacher ids"
// @Success 200 {object} response.Envelope
// @Router /dashboard/aggregate [get]
func (h *DashboardHandler) Aggregate(c *gin.Context) {
	result, hit, err := h.dashboard.Aggregate(c.Request.Context(), sessionFromContext(c), reportFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, withCacheMeta(c, hit))
}

// Analysis godoc
// @Summary Per-criterion score distribution
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/analysis [get]
func (h *DashboardHandler) Analysis(c *gin.Context) {
	result, hit, err := h.dashboard.Analysis(c.Request.Context(), sessionFromContext(c), reportFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, withCacheMeta(c, hit))
}

// Performance godoc
// @Summary Performance bands and trends
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/performance [get]
func (h *DashboardHandler) Performance(c *gin.Context) {
	result, hit, err := h.dashboard.Performance(c.Request.Context(), sessionFromContext(c), reportFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, withCacheMeta(c, hit))
}
