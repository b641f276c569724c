package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// CustomCriterionInput adds a criterion to a school's evaluation type.
type CustomCriterionInput struct {
	EvaluationType models.EvaluationType `json:"evaluationType" validate:"required,oneof=general class_session special"`
	Label          string                `json:"label" validate:"required,max=300"`
	IsGeneral      bool                  `json:"isGeneral"`
	ReportID       string                `json:"reportId"`
}

// HiddenCriterionInput hides or shows a built-in criterion label.
type HiddenCriterionInput struct {
	EvaluationType models.EvaluationType `json:"evaluationType" validate:"required,oneof=general class_session special"`
	Label          string                `json:"label" validate:"required"`
}

// TemplateInput is the payload for special report templates.
type TemplateInput struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Placeholders []string `json:"placeholders" validate:"min=1,dive,required"`
}

// CriteriaService manages custom criteria, hidden criteria and special report templates.
type CriteriaService struct {
	state     stateStore
	scope     visibilityProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCriteriaService constructs a CriteriaService.
func NewCriteriaService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *CriteriaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CriteriaService{state: state, scope: scope, validator: validate, logger: logger}
}

func (s *CriteriaService) visible(sess *models.Session) (models.VisibleSet, error) {
	if err := requireSession(sess); err != nil {
		return models.VisibleSet{}, err
	}
	c, rev := s.state.Snapshot()
	return s.scope.Visible(c, rev, sess), nil
}

// ListCustom returns the general criteria of evalType plus those local to reportID.
func (s *CriteriaService) ListCustom(ctx context.Context, sess *models.Session, evalType models.EvaluationType, reportID string) ([]models.CustomCriterion, error) {
	v, err := s.visible(sess)
	if err != nil {
		return nil, err
	}
	out := make([]models.CustomCriterion, 0)
	for _, cc := range v.CustomCriteria {
		if evalType != "" && cc.EvaluationType != evalType {
			continue
		}
		if cc.IsGeneral || (reportID != "" && cc.ReportID == reportID) {
			out = append(out, cc)
		}
	}
	return out, nil
}

// AddCustom stores a custom criterion for the selected school.
func (s *CriteriaService) AddCustom(ctx context.Context, sess *models.Session, req CustomCriterionInput) (*models.CustomCriterion, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid criterion payload")
	}
	if !req.IsGeneral && req.ReportID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "local criteria need a report id")
	}
	cc := models.CustomCriterion{
		ID:             newID(),
		School:         sess.SelectedSchool,
		EvaluationType: req.EvaluationType,
		Label:          strings.TrimSpace(req.Label),
		IsGeneral:      req.IsGeneral,
		ReportID:       req.ReportID,
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		for _, existing := range c.CustomCriteria {
			if existing.School == cc.School && existing.EvaluationType == cc.EvaluationType &&
				existing.IsGeneral && cc.IsGeneral && strings.EqualFold(existing.Label, cc.Label) {
				return appErrors.Clone(appErrors.ErrConflict, "criterion already exists")
			}
		}
		c.CustomCriteria = append(c.CustomCriteria, cc)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to add criterion")
	}
	return &cc, nil
}

// DeleteCustom removes a criterion. Saved reports keep their copy of it.
func (s *CriteriaService) DeleteCustom(ctx context.Context, sess *models.Session, id string) error {
	v, err := s.visible(sess)
	if err != nil {
		return err
	}
	if findIndex(v.CustomCriteria, func(cc models.CustomCriterion) bool { return cc.ID == id }) < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "criterion not found")
	}
	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		DeleteCascade(c, models.KeyCustomCriteria, id)
		return nil
	})
	return persistErrorOrNil(err, "failed to delete criterion")
}

// ListHidden returns hidden labels for evalType in the selected school.
func (s *CriteriaService) ListHidden(ctx context.Context, sess *models.Session, evalType models.EvaluationType) ([]models.HiddenCriterion, error) {
	v, err := s.visible(sess)
	if err != nil {
		return nil, err
	}
	out := make([]models.HiddenCriterion, 0)
	for _, h := range v.HiddenCriteria {
		if evalType == "" || h.EvaluationType == evalType {
			out = append(out, h)
		}
	}
	return out, nil
}

// SetHidden hides or shows a label. Hiding twice is a no-op.
func (s *CriteriaService) SetHidden(ctx context.Context, sess *models.Session, req HiddenCriterionInput, hidden bool) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid hidden criterion payload")
	}
	entry := models.HiddenCriterion{School: sess.SelectedSchool, EvaluationType: req.EvaluationType, Label: strings.TrimSpace(req.Label)}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.HiddenCriteria, func(h models.HiddenCriterion) bool { return h == entry })
		switch {
		case hidden && idx < 0:
			c.HiddenCriteria = append(c.HiddenCriteria, entry)
		case !hidden && idx >= 0:
			c.HiddenCriteria = append(c.HiddenCriteria[:idx:idx], c.HiddenCriteria[idx+1:]...)
		}
		return nil
	})
	return persistErrorOrNil(err, "failed to update hidden criteria")
}

// ListTemplates returns the selected school's special report templates.
func (s *CriteriaService) ListTemplates(ctx context.Context, sess *models.Session) ([]models.SpecialReportTemplate, error) {
	v, err := s.visible(sess)
	if err != nil {
		return nil, err
	}
	return v.SpecialReportTemplates, nil
}

// SaveTemplate creates a template when id is empty, otherwise replaces a visible one.
func (s *CriteriaService) SaveTemplate(ctx context.Context, sess *models.Session, id string, req TemplateInput) (*models.SpecialReportTemplate, error) {
	if err := requirePermission(sess, models.PermAddSpecialReport); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid template payload")
	}
	tpl := models.SpecialReportTemplate{
		ID:           id,
		School:       sess.SelectedSchool,
		Name:         strings.TrimSpace(req.Name),
		Placeholders: trimAll(req.Placeholders),
	}
	if tpl.ID == "" {
		tpl.ID = newID()
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.SpecialReportTemplates, func(t models.SpecialReportTemplate) bool {
			return t.ID == tpl.ID && t.School == tpl.School
		})
		if id == "" {
			c.SpecialReportTemplates = append(c.SpecialReportTemplates, tpl)
			return nil
		}
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		c.SpecialReportTemplates[idx] = tpl
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to save template")
	}
	return &tpl, nil
}

// DeleteTemplate removes a template of the selected school.
func (s *CriteriaService) DeleteTemplate(ctx context.Context, sess *models.Session, id string) error {
	v, err := s.visible(sess)
	if err != nil {
		return err
	}
	if findIndex(v.SpecialReportTemplates, func(t models.SpecialReportTemplate) bool { return t.ID == id }) < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		DeleteCascade(c, models.KeySpecialReportTemplates, id)
		return nil
	})
	return persistErrorOrNil(err, "failed to delete template")
}
