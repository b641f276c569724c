package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type visibilityProvider interface {
	Visible(c *models.Collections, revision uint64, sess *models.Session) models.VisibleSet
}

// TeacherInput is the create/update payload for teachers.
type TeacherInput struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Subjects      []string `json:"subjects"`
	Grades        []string `json:"grades"`
	Sections      []string `json:"sections"`
	Branch        string   `json:"branch" validate:"max=100"`
	Qualification string   `json:"qualification" validate:"max=200"`
	Phone         string   `json:"phone" validate:"max=50"`
	Notes         string   `json:"notes" validate:"max=2000"`
}

// DeleteResult reports how many records a cascading delete removed per collection.
type DeleteResult struct {
	Removed map[string]int `json:"removed"`
}

func newDeleteResult(removed map[string][]string) *DeleteResult {
	out := &DeleteResult{Removed: make(map[string]int, len(removed))}
	for key, ids := range removed {
		out.Removed[key] = len(ids)
	}
	return out
}

// TeacherService manages teacher records of the selected school.
type TeacherService struct {
	state     stateStore
	scope     visibilityProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{state: state, scope: scope, validator: validate, logger: logger}
}

// List returns the teachers visible to the session.
func (s *TeacherService) List(ctx context.Context, sess *models.Session) ([]models.Teacher, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	c, rev := s.state.Snapshot()
	return s.scope.Visible(c, rev, sess).Teachers, nil
}

// Get returns a visible teacher by id.
func (s *TeacherService) Get(ctx context.Context, sess *models.Session, id string) (*models.Teacher, error) {
	teachers, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	for i := range teachers {
		if teachers[i].ID == id {
			t := teachers[i]
			return &t, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
}

// Create adds a teacher to the selected school.
func (s *TeacherService) Create(ctx context.Context, sess *models.Session, req TeacherInput) (*models.Teacher, error) {
	if err := requirePermission(sess, models.PermAddTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher payload")
	}
	teacher := teacherFromInput(req)
	teacher.ID = newID()
	teacher.School = sess.SelectedSchool

	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		c.Teachers = append(c.Teachers, teacher)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID), zap.String("school", teacher.School))
	return &teacher, nil
}

// Update replaces a visible teacher's attributes. The school tag is kept.
func (s *TeacherService) Update(ctx context.Context, sess *models.Session, id string, req TeacherInput) (*models.Teacher, error) {
	if err := requirePermission(sess, models.PermEditTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher payload")
	}
	existing, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	updated := teacherFromInput(req)
	updated.ID = existing.ID
	updated.School = existing.School

	if err := s.replace(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ApplyPatch merges non-empty patch fields into a visible teacher.
func (s *TeacherService) ApplyPatch(ctx context.Context, sess *models.Session, patch TeacherPatch) (*models.Teacher, error) {
	if err := requirePermission(sess, models.PermEditTeacher); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, sess, patch.TeacherID)
	if err != nil {
		return nil, err
	}
	merged := patch.Apply(*existing)
	if err := s.replace(ctx, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *TeacherService) replace(ctx context.Context, teacher models.Teacher) error {
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.Teachers, func(t models.Teacher) bool { return t.ID == teacher.ID })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		c.Teachers[idx] = teacher
		return nil
	})
	if err != nil {
		return persistError(err, "failed to update teacher")
	}
	return nil
}

// Delete removes a visible teacher together with its reports and coverage reports.
func (s *TeacherService) Delete(ctx context.Context, sess *models.Session, id string) (*DeleteResult, error) {
	if err := requirePermission(sess, models.PermDeleteTeacher); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, sess, id); err != nil {
		return nil, err
	}
	var removed map[string][]string
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		removed = DeleteCascade(c, models.KeyTeachers, id)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to delete teacher")
	}
	s.logger.Info("teacher deleted",
		zap.String("teacher_id", id),
		zap.Int("reports", len(removed[models.KeyReports])),
		zap.Int("coverage_reports", len(removed[models.KeySyllabusCoverageReports])))
	return newDeleteResult(removed), nil
}

func teacherFromInput(req TeacherInput) models.Teacher {
	return models.Teacher{
		Name:          strings.TrimSpace(req.Name),
		Subjects:      trimAll(req.Subjects),
		Grades:        trimAll(req.Grades),
		Sections:      trimAll(req.Sections),
		Branch:        strings.TrimSpace(req.Branch),
		Qualification: strings.TrimSpace(req.Qualification),
		Phone:         strings.TrimSpace(req.Phone),
		Notes:         strings.TrimSpace(req.Notes),
	}
}
