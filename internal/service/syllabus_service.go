package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// SyllabusPlanInput is the create/update payload for plans.
type SyllabusPlanInput struct {
	Subject string                 `json:"subject" validate:"required,max=200"`
	Grade   string                 `json:"grade" validate:"required,max=50"`
	Branch  string                 `json:"branch" validate:"max=100"`
	Lessons []models.PlannedLesson `json:"lessons" validate:"dive"`
}

// CoverageReportInput is the create/update payload for coverage reports.
type CoverageReportInput struct {
	TeacherID string                 `json:"teacherId" validate:"required"`
	Date      string                 `json:"date" validate:"required,datetime=2006-01-02"`
	Entries   []models.CoverageEntry `json:"entries" validate:"min=1,dive"`
}

// SyllabusService manages syllabus plans and coverage observations.
type SyllabusService struct {
	state     stateStore
	scope     visibilityProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSyllabusService constructs a SyllabusService.
func NewSyllabusService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *SyllabusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyllabusService{state: state, scope: scope, validator: validate, logger: logger}
}

func (s *SyllabusService) visible(sess *models.Session, perm models.Permission) (models.VisibleSet, error) {
	if err := requirePermission(sess, perm); err != nil {
		return models.VisibleSet{}, err
	}
	c, rev := s.state.Snapshot()
	return s.scope.Visible(c, rev, sess), nil
}

// ListPlans returns plans of the selected school.
func (s *SyllabusService) ListPlans(ctx context.Context, sess *models.Session) ([]models.SyllabusPlan, error) {
	v, err := s.visible(sess, models.PermViewSyllabus)
	if err != nil {
		return nil, err
	}
	return v.SyllabusPlans, nil
}

// GetPlan returns a visible plan by id.
func (s *SyllabusService) GetPlan(ctx context.Context, sess *models.Session, id string) (*models.SyllabusPlan, error) {
	plans, err := s.ListPlans(ctx, sess)
	if err != nil {
		return nil, err
	}
	idx := findIndex(plans, func(p models.SyllabusPlan) bool { return p.ID == id })
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "syllabus plan not found")
	}
	plan := plans[idx]
	return &plan, nil
}

// SavePlan creates a plan when id is empty, otherwise replaces a visible one.
// A school holds at most one plan per (subject, grade, branch).
func (s *SyllabusService) SavePlan(ctx context.Context, sess *models.Session, id string, req SyllabusPlanInput) (*models.SyllabusPlan, error) {
	if err := requirePermission(sess, models.PermManageSyllabus); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid syllabus plan payload")
	}
	plan := models.SyllabusPlan{
		ID:      id,
		School:  sess.SelectedSchool,
		Subject: strings.TrimSpace(req.Subject),
		Grade:   strings.TrimSpace(req.Grade),
		Branch:  strings.TrimSpace(req.Branch),
		Lessons: req.Lessons,
	}
	if plan.ID == "" {
		plan.ID = newID()
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		for _, p := range c.SyllabusPlans {
			if p.ID != plan.ID && p.School == plan.School && samePlanKey(p, plan.Subject, plan.Grade, plan.Branch) {
				return appErrors.Clone(appErrors.ErrConflict, "a plan already exists for this subject and grade")
			}
		}
		if id == "" {
			c.SyllabusPlans = append(c.SyllabusPlans, plan)
			return nil
		}
		idx := findIndex(c.SyllabusPlans, func(p models.SyllabusPlan) bool { return p.ID == id && p.School == plan.School })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "syllabus plan not found")
		}
		c.SyllabusPlans[idx] = plan
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to save syllabus plan")
	}
	return &plan, nil
}

// DeletePlan removes a plan. Coverage reports keep their computed statuses.
func (s *SyllabusService) DeletePlan(ctx context.Context, sess *models.Session, id string) error {
	if err := requirePermission(sess, models.PermManageSyllabus); err != nil {
		return err
	}
	if _, err := s.GetPlan(ctx, sess, id); err != nil {
		return err
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		DeleteCascade(c, models.KeySyllabusPlans, id)
		return nil
	})
	return persistErrorOrNil(err, "failed to delete syllabus plan")
}

// ListCoverage returns the coverage reports visible to the session, newest first.
func (s *SyllabusService) ListCoverage(ctx context.Context, sess *models.Session) ([]models.SyllabusCoverageReport, error) {
	v, err := s.visible(sess, models.PermViewSyllabus)
	if err != nil {
		return nil, err
	}
	out := append([]models.SyllabusCoverageReport(nil), v.SyllabusCoverageReports...)
	sortByDateDesc(out, func(r models.SyllabusCoverageReport) string { return r.Date })
	return out, nil
}

// GetCoverage returns a visible coverage report by id.
func (s *SyllabusService) GetCoverage(ctx context.Context, sess *models.Session, id string) (*models.SyllabusCoverageReport, error) {
	reports, err := s.ListCoverage(ctx, sess)
	if err != nil {
		return nil, err
	}
	idx := findIndex(reports, func(r models.SyllabusCoverageReport) bool { return r.ID == id })
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "coverage report not found")
	}
	report := reports[idx]
	return &report, nil
}

// CreateCoverage stores a coverage report with per-entry status computed
// against the school's plans as of the report date.
func (s *SyllabusService) CreateCoverage(ctx context.Context, sess *models.Session, req CoverageReportInput) (*models.SyllabusCoverageReport, error) {
	report, err := s.buildCoverage(sess, req)
	if err != nil {
		return nil, err
	}
	report.Record = models.Record{
		ID:           newID(),
		School:       sess.SelectedSchool,
		AuthorID:     sess.User.ID,
		AcademicYear: sess.AcademicYear,
	}
	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		c.SyllabusCoverageReports = append(c.SyllabusCoverageReports, report)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to create coverage report")
	}
	return &report, nil
}

// UpdateCoverage replaces a visible coverage report and recomputes its statuses.
func (s *SyllabusService) UpdateCoverage(ctx context.Context, sess *models.Session, id string, req CoverageReportInput) (*models.SyllabusCoverageReport, error) {
	existing, err := s.GetCoverage(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	report, err := s.buildCoverage(sess, req)
	if err != nil {
		return nil, err
	}
	report.Record = existing.Record
	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.SyllabusCoverageReports, func(r models.SyllabusCoverageReport) bool { return r.ID == id })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "coverage report not found")
		}
		c.SyllabusCoverageReports[idx] = report
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to update coverage report")
	}
	return &report, nil
}

// DeleteCoverage removes a visible coverage report.
func (s *SyllabusService) DeleteCoverage(ctx context.Context, sess *models.Session, id string) error {
	if _, err := s.GetCoverage(ctx, sess, id); err != nil {
		return err
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		DeleteCascade(c, models.KeySyllabusCoverageReports, id)
		return nil
	})
	return persistErrorOrNil(err, "failed to delete coverage report")
}

func (s *SyllabusService) buildCoverage(sess *models.Session, req CoverageReportInput) (models.SyllabusCoverageReport, error) {
	v, err := s.visible(sess, models.PermViewSyllabus)
	if err != nil {
		return models.SyllabusCoverageReport{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return models.SyllabusCoverageReport{}, validationError(err, "invalid coverage report payload")
	}
	if findIndex(v.Teachers, func(t models.Teacher) bool { return t.ID == req.TeacherID }) < 0 {
		return models.SyllabusCoverageReport{}, appErrors.Clone(appErrors.ErrValidation, "teacher is not visible in the selected school")
	}
	entries := make([]models.CoverageEntry, len(req.Entries))
	for i, e := range req.Entries {
		e.Status, e.LessonDifference = "", 0
		if plan, ok := findPlan(v.SyllabusPlans, e.Subject, e.Grade, e.Branch); ok {
			if p, ok := CompareProgress(plan, e.LastLesson, req.Date); ok {
				e.Status = p.Status
				e.LessonDifference = p.Difference
			}
		}
		entries[i] = e
	}
	return models.SyllabusCoverageReport{TeacherID: req.TeacherID, Date: req.Date, Entries: entries}, nil
}

// findPlan prefers an exact branch match and falls back to a plan without a branch.
func findPlan(plans []models.SyllabusPlan, subject, grade, branch string) (models.SyllabusPlan, bool) {
	fallback := -1
	for i, p := range plans {
		if !strings.EqualFold(p.Subject, strings.TrimSpace(subject)) || !strings.EqualFold(p.Grade, strings.TrimSpace(grade)) {
			continue
		}
		if strings.EqualFold(p.Branch, strings.TrimSpace(branch)) {
			return p, true
		}
		if p.Branch == "" && fallback < 0 {
			fallback = i
		}
	}
	if fallback >= 0 {
		return plans[fallback], true
	}
	return models.SyllabusPlan{}, false
}

func samePlanKey(p models.SyllabusPlan, subject, grade, branch string) bool {
	return strings.EqualFold(p.Subject, subject) && strings.EqualFold(p.Grade, grade) && strings.EqualFold(p.Branch, branch)
}
