package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// ProgressUpdate changes the status or completion of one meeting outcome or plan entry.
type ProgressUpdate struct {
	Status               models.ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	CompletionPercentage *int                  `json:"completionPercentage" validate:"omitempty,min=0,max=100"`
}

// apply reconciles status and percentage: done means 100 and 100 means done.
// An explicit not_done resets the percentage, as does an explicit in_progress at 100.
func (u ProgressUpdate) apply(status *models.ActivityStatus, pct *int) {
	if u.CompletionPercentage != nil {
		*pct = *u.CompletionPercentage
	}
	if u.Status != "" {
		*status = u.Status
		switch {
		case u.Status == models.StatusNotDone:
			*pct = 0
		case u.Status == models.StatusInProgress && *pct == 100:
			*pct = 0
		}
	}
	switch {
	case *status == models.StatusDone:
		*pct = 100
	case *pct == 100:
		*status = models.StatusDone
	case *pct > 0 && *status == models.StatusNotDone:
		*status = models.StatusInProgress
	}
}

// rollupStatus derives a parent status from its children's statuses.
func rollupStatus(statuses []models.ActivityStatus) models.ActivityStatus {
	if len(statuses) == 0 {
		return ""
	}
	done, started := 0, 0
	for _, s := range statuses {
		switch s {
		case models.StatusDone:
			done++
		case models.StatusInProgress:
			started++
		}
	}
	switch {
	case done == len(statuses):
		return models.StatusDone
	case done > 0 || started > 0:
		return models.StatusInProgress
	}
	return models.StatusNotDone
}

// Summarize counts statuses and averages completion across children.
func Summarize(statuses []models.ActivityStatus, completion []int) models.CompletionSummary {
	sum := models.CompletionSummary{Total: len(statuses)}
	for _, s := range statuses {
		switch s {
		case models.StatusDone:
			sum.Done++
		case models.StatusInProgress:
			sum.InProgress++
		default:
			sum.NotDone++
		}
	}
	if len(completion) > 0 {
		total := 0
		for _, c := range completion {
			total += c
		}
		sum.AverageCompletion = Round1(float64(total) / float64(len(completion)))
	}
	return sum
}

// MeetingService manages meetings and their outcome tracking.
type MeetingService struct {
	*ActivityService[models.Meeting, *models.Meeting]
}

// NewMeetingService constructs a MeetingService.
func NewMeetingService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	return &MeetingService{newActivityService[models.Meeting, *models.Meeting](activityKind[models.Meeting]{
		key:        models.KeyMeetings,
		noun:       "meeting",
		permission: models.PermViewMeetings,
		items:      func(c *models.Collections) *[]models.Meeting { return &c.Meetings },
		visible:    func(v models.VisibleSet) []models.Meeting { return v.Meetings },
		date:       func(m models.Meeting) string { return m.Date },
		prepare:    prepareMeeting,
	}, state, scope, validate, logger)}
}

func prepareMeeting(m *models.Meeting) {
	m.Attendees = trimAll(m.Attendees)
	for i := range m.Outcomes {
		o := &m.Outcomes[i]
		if o.ID == "" {
			o.ID = newID()
		}
		defaultStatus(&o.Status)
		ProgressUpdate{}.apply(&o.Status, &o.CompletionPercentage)
	}
	if rolled := rollupStatus(meetingStatuses(m)); rolled != "" {
		m.Status = rolled
	}
	defaultStatus(&m.Status)
}

func meetingStatuses(m *models.Meeting) []models.ActivityStatus {
	out := make([]models.ActivityStatus, len(m.Outcomes))
	for i, o := range m.Outcomes {
		out[i] = o.Status
	}
	return out
}

// UpdateOutcome changes one outcome and re-derives the meeting status.
func (s *MeetingService) UpdateOutcome(ctx context.Context, sess *models.Session, meetingID, outcomeID string, update ProgressUpdate) (*models.Meeting, error) {
	if err := s.validator.Struct(update); err != nil {
		return nil, validationError(err, "invalid outcome update")
	}
	return s.Modify(ctx, sess, meetingID, func(m *models.Meeting) error {
		idx := findIndex(m.Outcomes, func(o models.MeetingOutcome) bool { return o.ID == outcomeID })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting outcome not found")
		}
		update.apply(&m.Outcomes[idx].Status, &m.Outcomes[idx].CompletionPercentage)
		return nil
	})
}

// Summary aggregates outcome progress over every visible meeting.
func (s *MeetingService) Summary(ctx context.Context, sess *models.Session) (models.CompletionSummary, error) {
	meetings, err := s.List(ctx, sess)
	if err != nil {
		return models.CompletionSummary{}, err
	}
	var statuses []models.ActivityStatus
	var completion []int
	for _, m := range meetings {
		for _, o := range m.Outcomes {
			statuses = append(statuses, o.Status)
			completion = append(completion, o.CompletionPercentage)
		}
	}
	return Summarize(statuses, completion), nil
}

// SupervisoryPlanService manages supervisory plans and their entries.
type SupervisoryPlanService struct {
	*ActivityService[models.SupervisoryPlanWrapper, *models.SupervisoryPlanWrapper]
}

// NewSupervisoryPlanService constructs a SupervisoryPlanService.
func NewSupervisoryPlanService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *SupervisoryPlanService {
	return &SupervisoryPlanService{newActivityService[models.SupervisoryPlanWrapper, *models.SupervisoryPlanWrapper](activityKind[models.SupervisoryPlanWrapper]{
		key:        models.KeySupervisoryPlans,
		noun:       "supervisory plan",
		permission: models.PermViewSupervisoryPlan,
		items:      func(c *models.Collections) *[]models.SupervisoryPlanWrapper { return &c.SupervisoryPlans },
		visible:    func(v models.VisibleSet) []models.SupervisoryPlanWrapper { return v.SupervisoryPlans },
		prepare:    preparePlan,
	}, state, scope, validate, logger)}
}

func preparePlan(p *models.SupervisoryPlanWrapper) {
	statuses := make([]models.ActivityStatus, len(p.Entries))
	for i := range p.Entries {
		e := &p.Entries[i]
		if e.ID == "" {
			e.ID = newID()
		}
		defaultStatus(&e.Status)
		ProgressUpdate{}.apply(&e.Status, &e.CompletionPercentage)
		statuses[i] = e.Status
	}
	if rolled := rollupStatus(statuses); rolled != "" {
		p.Status = rolled
	}
	defaultStatus(&p.Status)
}

// UpdateEntry changes one plan entry and re-derives the plan status.
func (s *SupervisoryPlanService) UpdateEntry(ctx context.Context, sess *models.Session, planID, entryID string, update ProgressUpdate) (*models.SupervisoryPlanWrapper, error) {
	if err := s.validator.Struct(update); err != nil {
		return nil, validationError(err, "invalid entry update")
	}
	return s.Modify(ctx, sess, planID, func(p *models.SupervisoryPlanWrapper) error {
		idx := findIndex(p.Entries, func(e models.PlanEntry) bool { return e.ID == entryID })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "plan entry not found")
		}
		update.apply(&p.Entries[idx].Status, &p.Entries[idx].CompletionPercentage)
		return nil
	})
}

// Summary aggregates entry progress of one visible plan.
func (s *SupervisoryPlanService) Summary(ctx context.Context, sess *models.Session, planID string) (models.CompletionSummary, error) {
	plan, err := s.Get(ctx, sess, planID)
	if err != nil {
		return models.CompletionSummary{}, err
	}
	statuses := make([]models.ActivityStatus, len(plan.Entries))
	completion := make([]int, len(plan.Entries))
	for i, e := range plan.Entries {
		statuses[i] = e.Status
		completion[i] = e.CompletionPercentage
	}
	return Summarize(statuses, completion), nil
}
