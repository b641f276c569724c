package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
)

// SchoolService manages the school list. Renaming a school retags every record it owns.
type SchoolService struct {
	state  stateStore
	logger *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(state stateStore, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{state: state, logger: logger}
}

// List returns every configured school. It needs no session since login offers the choice.
func (s *SchoolService) List(ctx context.Context) []string {
	c, _ := s.state.Snapshot()
	return append([]string{}, c.Schools...)
}

// Add appends a school name.
func (s *SchoolService) Add(ctx context.Context, sess *models.Session, name string) error {
	if err := requirePermission(sess, models.PermManageData); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "school name is required")
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		if findIndex(c.Schools, func(v string) bool { return strings.EqualFold(v, name) }) >= 0 {
			return appErrors.Clone(appErrors.ErrConflict, "school already exists")
		}
		c.Schools = append(c.Schools, name)
		return nil
	})
	return persistErrorOrNil(err, "failed to add school")
}

// Rename changes a school's name and moves its records and assigned users along.
func (s *SchoolService) Rename(ctx context.Context, sess *models.Session, from, to string) (int, error) {
	if err := requirePermission(sess, models.PermManageData); err != nil {
		return 0, err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "school name is required")
	}
	moved := 0
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.Schools, func(v string) bool { return v == from })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		if from == to {
			return nil
		}
		if findIndex(c.Schools, func(v string) bool { return v == to }) >= 0 {
			return appErrors.Clone(appErrors.ErrConflict, "school already exists")
		}
		c.Schools[idx] = to
		moved = retagAll(c, from, to)
		for i := range c.Users {
			if c.Users[i].SchoolName == from {
				c.Users[i].SchoolName = to
				moved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, persistError(err, "failed to rename school")
	}
	s.logger.Info("school renamed", zap.String("from", from), zap.String("to", to), zap.Int("records", moved))
	return moved, nil
}

var optionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// OptionsService stores the per-feature dropdown lists under options:<name>.
type OptionsService struct {
	store kvstore.Store
}

// NewOptionsService constructs an OptionsService.
func NewOptionsService(store kvstore.Store) *OptionsService {
	return &OptionsService{store: store}
}

// Get returns the list stored under name, or an empty list.
func (s *OptionsService) Get(ctx context.Context, sess *models.Session, name string) ([]string, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !optionNamePattern.MatchString(name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid option list name")
	}
	values := []string{}
	if _, err := kvstore.LoadJSON(ctx, s.store, models.OptionsKeyPrefix+name, &values); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load options")
	}
	return values, nil
}

// Set replaces the list stored under name. Blank and duplicate entries are dropped.
func (s *OptionsService) Set(ctx context.Context, sess *models.Session, name string, values []string) ([]string, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !optionNamePattern.MatchString(name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid option list name")
	}
	cleaned := mergeUnique(nil, trimAll(values))
	if cleaned == nil {
		cleaned = []string{}
	}
	if err := kvstore.SaveJSON(ctx, s.store, models.OptionsKeyPrefix+name, cleaned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save options")
	}
	return cleaned, nil
}
