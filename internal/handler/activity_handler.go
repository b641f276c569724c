package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type activityCRUD[T any] interface {
	List(ctx context.Context, sess *models.Session) ([]T, error)
	Get(ctx context.Context, sess *models.Session, id string) (*T, error)
	Create(ctx context.Context, sess *models.Session, item T) (*T, error)
	Update(ctx context.Context, sess *models.Session, id string, item T) (*T, error)
	Delete(ctx context.Context, sess *models.Session, id string) error
}

// ActivityHandler serves CRUD routes for one authored activity collection
// (tasks, meetings, peer visits, delivery sheets, bulk messages, plans).
type ActivityHandler[T any] struct {
	svc  activityCRUD[T]
	noun string
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler[T any](svc activityCRUD[T], noun string) *ActivityHandler[T] {
	return &ActivityHandler[T]{svc: svc, noun: noun}
}

// Register mounts list/get/create/update/delete on group.
func (h *ActivityHandler[T]) Register(group gin.IRoutes) {
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("", h.Create)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}

func (h *ActivityHandler[T]) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func (h *ActivityHandler[T]) Get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

func (h *ActivityHandler[T]) Create(c *gin.Context) {
	var item T
	if !bindJSON(c, &item, "invalid "+h.noun+" payload") {
		return
	}
	created, err := h.svc.Create(c.Request.Context(), sessionFromContext(c), item)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

func (h *ActivityHandler[T]) Update(c *gin.Context) {
	var item T
	if !bindJSON(c, &item, "invalid "+h.noun+" payload") {
		return
	}
	updated, err := h.svc.Update(c.Request.Context(), sessionFromContext(c), c.Param("id"), item)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

func (h *ActivityHandler[T]) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), sessionFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ProgressHandler exposes outcome and entry progress on meetings and supervisory plans.
type ProgressHandler struct {
	meetings *service.MeetingService
	plans    *service.SupervisoryPlanService
}

// NewProgressHandler constructs a ProgressHandler.
func NewProgressHandler(meetings *service.MeetingService, plans *service.SupervisoryPlanService) *ProgressHandler {
	return &ProgressHandler{meetings: meetings, plans: plans}
}

// UpdateOutcome godoc
// @Summary Update a meeting outcome's status or completion
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param outcomeId path string true "Outcome ID"
// @Param payload body service.ProgressUpdate true "Progress"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/outcomes/{outcomeId} [patch]
func (h *ProgressHandler) UpdateOutcome(c *gin.Context) {
	var update service.ProgressUpdate
	if !bindJSON(c, &update, "invalid outcome update") {
		return
	}
	meeting, err := h.meetings.UpdateOutcome(c.Request.Context(), sessionFromContext(c), c.Param("id"), c.Param("outcomeId"), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// MeetingSummary godoc
// @Summary Outcome completion across visible meetings
// @Tags Meetings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meetings/summary [get]
func (h *ProgressHandler) MeetingSummary(c *gin.Context) {
	summary, err := h.meetings.Summary(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// UpdateEntry godoc
// @Summary Update a supervisory plan entry's status or completion
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param entryId path string true "Entry ID"
// @Param payload body service.ProgressUpdate true "Progress"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/entries/{entryId} [patch]
func (h *ProgressHandler) UpdateEntry(c *gin.Context) {
	var update service.ProgressUpdate
	if !bindJSON(c, &update, "invalid entry update") {
		return
	}
	plan, err := h.plans.UpdateEntry(c.Request.Context(), sessionFromContext(c), c.Param("id"), c.Param("entryId"), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// PlanSummary godoc
// @Summary Entry completion of one supervisory plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/summary [get]
func (h *ProgressHandler) PlanSummary(c *gin.Context) {
	summary, err := h.plans.Summary(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
