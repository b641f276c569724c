package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// ReportInput is the create/update payload for every report variant.
type ReportInput struct {
	TeacherID       string                     `json:"teacherId" validate:"required"`
	Date            string                     `json:"date" validate:"required,datetime=2006-01-02"`
	EvaluationType  models.EvaluationType      `json:"evaluationType" validate:"required,oneof=general class_session special"`
	Subject         string                     `json:"subject" validate:"max=200"`
	Grades          string                     `json:"grades" validate:"max=200"`
	Branch          string                     `json:"branch" validate:"max=100"`
	Criteria        []models.Criterion         `json:"criteria" validate:"dive"`
	CriterionGroups []models.CriterionGroup    `json:"criterionGroups" validate:"dive"`
	SubType         models.ClassSessionSubType `json:"subType" validate:"omitempty,oneof=brief extended subject_specific"`
	TemplateName    string                     `json:"templateName"`

	Positives           string `json:"positives"`
	NotesForImprovement string `json:"notesForImprovement"`
	Recommendations     string `json:"recommendations"`
	EmployeeComment     string `json:"employeeComment"`
}

// ReportView is a report with its computed percentage.
type ReportView struct {
	models.Report
	Percentage float64 `json:"percentage"`
	Bookmarked bool    `json:"bookmarked"`
}

// ReportService manages evaluation reports.
type ReportService struct {
	state     stateStore
	scope     visibilityProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{state: state, scope: scope, validator: validate, logger: logger}
}

func createPermission(t models.EvaluationType) models.Permission {
	switch t {
	case models.EvaluationClassSession:
		return models.PermAddClassSessionReport
	case models.EvaluationSpecial:
		return models.PermAddSpecialReport
	default:
		return models.PermAddGeneralReport
	}
}

// Visible returns the scoped reports, filtered and ordered most recent first.
func (s *ReportService) Visible(ctx context.Context, sess *models.Session, filter models.ReportFilter) ([]models.Report, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	c, rev := s.state.Snapshot()
	reports := FilterReports(s.scope.Visible(c, rev, sess).Reports, filter)
	SortReportsByDateDesc(reports)
	return reports, nil
}

// List returns visible reports with percentages and bookmark flags.
func (s *ReportService) List(ctx context.Context, sess *models.Session, filter models.ReportFilter) ([]ReportView, error) {
	reports, err := s.Visible(ctx, sess, filter)
	if err != nil {
		return nil, err
	}
	c, _ := s.state.Snapshot()
	bookmarks := newIDSet(c.BookmarkedReportIDs)
	views := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, ReportView{Report: r, Percentage: Round1(ScoreOf(r)), Bookmarked: bookmarks.has(r.ID)})
	}
	return views, nil
}

// Get returns a visible report.
func (s *ReportService) Get(ctx context.Context, sess *models.Session, id string) (*ReportView, error) {
	views, err := s.List(ctx, sess, models.ReportFilter{})
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].ID == id {
			return &views[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
}

// Create stores a new report. Ownership tags come from the session.
func (s *ReportService) Create(ctx context.Context, sess *models.Session, req ReportInput) (*models.Report, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := requirePermission(sess, createPermission(req.EvaluationType)); err != nil {
		return nil, err
	}
	report, err := s.build(ctx, sess, req)
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
		c.Reports = append(c.Reports, report)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to create report")
	}
	s.logger.Info("report created",
		zap.String("report_id", report.ID),
		zap.String("type", string(report.EvaluationType)),
		zap.String("teacher_id", report.TeacherID))
	return &report, nil
}

// Update replaces the content of a visible report, keeping its ownership tags.
func (s *ReportService) Update(ctx context.Context, sess *models.Session, id string, req ReportInput) (*models.Report, error) {
	existing, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := requirePermission(sess, createPermission(req.EvaluationType)); err != nil {
		return nil, err
	}
	report, err := s.build(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	report.Record = existing.Record

	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.Reports, func(r models.Report) bool { return r.ID == id })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		c.Reports[idx] = report
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to update report")
	}
	return &report, nil
}

// Delete removes a visible report and its report-local criteria.
func (s *ReportService) Delete(ctx context.Context, sess *models.Session, id string) (*DeleteResult, error) {
	if err := requirePermission(sess, models.PermDeleteReports); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, sess, id); err != nil {
		return nil, err
	}
	var removed map[string][]string
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		removed = DeleteCascade(c, models.KeyReports, id)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to delete report")
	}
	return newDeleteResult(removed), nil
}

// ToggleBookmark flips the bookmark flag of a visible report and returns the new value.
func (s *ReportService) ToggleBookmark(ctx context.Context, sess *models.Session, id string) (bool, error) {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return false, err
	}
	var bookmarked bool
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.BookmarkedReportIDs, func(v string) bool { return v == id })
		if idx >= 0 {
			c.BookmarkedReportIDs = append(c.BookmarkedReportIDs[:idx:idx], c.BookmarkedReportIDs[idx+1:]...)
			bookmarked = false
			return nil
		}
		c.BookmarkedReportIDs = append(c.BookmarkedReportIDs, id)
		bookmarked = true
		return nil
	})
	if err != nil {
		return false, persistError(err, "failed to update bookmarks")
	}
	return bookmarked, nil
}

// build validates the payload against its variant and the visible teachers.
func (s *ReportService) build(ctx context.Context, sess *models.Session, req ReportInput) (models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Report{}, validationError(err, "invalid report payload")
	}
	c, rev := s.state.Snapshot()
	visible := s.scope.Visible(c, rev, sess)
	if findIndex(visible.Teachers, func(t models.Teacher) bool { return t.ID == req.TeacherID }) < 0 {
		return models.Report{}, appErrors.Clone(appErrors.ErrValidation, "teacher is not visible in the selected school")
	}

	report := models.Report{
		TeacherID:           req.TeacherID,
		Date:                req.Date,
		EvaluationType:      req.EvaluationType,
		Subject:             strings.TrimSpace(req.Subject),
		Grades:              strings.TrimSpace(req.Grades),
		Branch:              strings.TrimSpace(req.Branch),
		Positives:           req.Positives,
		NotesForImprovement: req.NotesForImprovement,
		Recommendations:     req.Recommendations,
		EmployeeComment:     req.EmployeeComment,
	}

	switch req.EvaluationType {
	case models.EvaluationClassSession:
		if len(req.CriterionGroups) == 0 {
			return models.Report{}, appErrors.Clone(appErrors.ErrValidation, "class session reports need criterion groups")
		}
		report.SubType = req.SubType
		if report.SubType == "" {
			report.SubType = models.SubTypeBrief
		}
		report.CriterionGroups = make([]models.CriterionGroup, len(req.CriterionGroups))
		for i, g := range req.CriterionGroups {
			if g.ID == "" {
				g.ID = newID()
			}
			g.Criteria = withCriterionIDs(g.Criteria)
			report.CriterionGroups[i] = g
		}
	case models.EvaluationSpecial:
		if strings.TrimSpace(req.TemplateName) == "" {
			return models.Report{}, appErrors.Clone(appErrors.ErrValidation, "special reports need a template name")
		}
		report.TemplateName = strings.TrimSpace(req.TemplateName)
		fallthrough
	default:
		if len(req.Criteria) == 0 {
			return models.Report{}, appErrors.Clone(appErrors.ErrValidation, "reports need at least one criterion")
		}
		report.Criteria = withCriterionIDs(req.Criteria)
	}
	return report, nil
}

func withCriterionIDs(criteria []models.Criterion) []models.Criterion {
	out := make([]models.Criterion, len(criteria))
	for i, c := range criteria {
		if c.ID == "" {
			c.ID = newID()
		}
		c.Label = strings.TrimSpace(c.Label)
		out[i] = c
	}
	return out
}
