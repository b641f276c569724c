package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// activityPtr constrains P to a pointer to an author-scoped record type.
type activityPtr[T any] interface {
	*T
	Meta() models.Record
	SetMeta(models.Record)
}

// activityKind describes how one author-scoped collection is stored and scoped.
type activityKind[T any] struct {
	key        string
	noun       string
	permission models.Permission
	items      func(c *models.Collections) *[]T
	visible    func(v models.VisibleSet) []T
	date       func(T) string
	prepare    func(item *T)
}

// ActivityService is the CRUD surface shared by tasks, meetings, peer visits,
// delivery sheets, bulk messages and supervisory plans. Records are stamped
// with the session's school, user and year on create and keep them on update.
type ActivityService[T any, P activityPtr[T]] struct {
	kind      activityKind[T]
	state     stateStore
	scope     visibilityProvider
	validator *validator.Validate
	logger    *zap.Logger
}

func newActivityService[T any, P activityPtr[T]](kind activityKind[T], state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *ActivityService[T, P] {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService[T, P]{kind: kind, state: state, scope: scope, validator: validate, logger: logger}
}

// List returns the records visible to the session, most recent first when the kind has a date.
func (s *ActivityService[T, P]) List(ctx context.Context, sess *models.Session) ([]T, error) {
	if err := requirePermission(sess, s.kind.permission); err != nil {
		return nil, err
	}
	c, rev := s.state.Snapshot()
	items := append([]T(nil), s.kind.visible(s.scope.Visible(c, rev, sess))...)
	if s.kind.date != nil {
		sortByDateDesc(items, s.kind.date)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get returns a visible record by id.
func (s *ActivityService[T, P]) Get(ctx context.Context, sess *models.Session, id string) (*T, error) {
	items, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if P(&items[i]).Meta().ID == id {
			item := items[i]
			return &item, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, s.kind.noun+" not found")
}

// Create validates and stores item under a fresh id.
func (s *ActivityService[T, P]) Create(ctx context.Context, sess *models.Session, item T) (*T, error) {
	if err := requirePermission(sess, s.kind.permission); err != nil {
		return nil, err
	}
	P(&item).SetMeta(models.Record{
		ID:           newID(),
		School:       sess.SelectedSchool,
		AuthorID:     sess.User.ID,
		AcademicYear: sess.AcademicYear,
	})
	if err := s.check(&item); err != nil {
		return nil, err
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		items := s.kind.items(c)
		*items = append(*items, item)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to create "+s.kind.noun)
	}
	s.logger.Debug("activity created", zap.String("kind", s.kind.key), zap.String("id", P(&item).Meta().ID))
	return &item, nil
}

// Update replaces a visible record, keeping its ownership tags.
func (s *ActivityService[T, P]) Update(ctx context.Context, sess *models.Session, id string, item T) (*T, error) {
	existing, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	P(&item).SetMeta(P(existing).Meta())
	if err := s.check(&item); err != nil {
		return nil, err
	}
	if err := s.replace(ctx, item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Modify applies fn to a visible record and stores the result. fn runs on the
// private working copy inside Mutate, so a failed save leaves the current state untouched.
func (s *ActivityService[T, P]) Modify(ctx context.Context, sess *models.Session, id string, fn func(item P) error) (*T, error) {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return nil, err
	}
	var updated T
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		items := s.kind.items(c)
		idx := findIndex(*items, func(existing T) bool { return P(&existing).Meta().ID == id })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, s.kind.noun+" not found")
		}
		item := P(&(*items)[idx])
		meta := item.Meta()
		if err := fn(item); err != nil {
			return err
		}
		item.SetMeta(meta)
		if err := s.check((*T)(item)); err != nil {
			return err
		}
		updated = (*items)[idx]
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to update "+s.kind.noun)
	}
	return &updated, nil
}

// Delete removes a visible record.
func (s *ActivityService[T, P]) Delete(ctx context.Context, sess *models.Session, id string) error {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return err
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		DeleteCascade(c, s.kind.key, id)
		return nil
	})
	return persistErrorOrNil(err, "failed to delete "+s.kind.noun)
}

func (s *ActivityService[T, P]) check(item *T) error {
	if s.kind.prepare != nil {
		s.kind.prepare(item)
	}
	if err := s.validator.Struct(item); err != nil {
		return validationError(err, "invalid "+s.kind.noun+" payload")
	}
	return nil
}

func (s *ActivityService[T, P]) replace(ctx context.Context, item T) error {
	id := P(&item).Meta().ID
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		items := s.kind.items(c)
		idx := findIndex(*items, func(existing T) bool { return P(&existing).Meta().ID == id })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, s.kind.noun+" not found")
		}
		(*items)[idx] = item
		return nil
	})
	return persistErrorOrNil(err, "failed to update "+s.kind.noun)
}

func defaultStatus(status *models.ActivityStatus) {
	if *status == "" {
		*status = models.StatusNotDone
	}
}

// TaskService manages supervisor to-do items.
type TaskService = ActivityService[models.Task, *models.Task]

// NewTaskService constructs the task CRUD service.
func NewTaskService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *TaskService {
	return newActivityService[models.Task, *models.Task](activityKind[models.Task]{
		key:        models.KeyTasks,
		noun:       "task",
		permission: models.PermViewTasks,
		items:      func(c *models.Collections) *[]models.Task { return &c.Tasks },
		visible:    func(v models.VisibleSet) []models.Task { return v.Tasks },
		date:       func(t models.Task) string { return t.DueDate },
		prepare:    func(t *models.Task) { defaultStatus(&t.Status) },
	}, state, scope, validate, logger)
}

// PeerVisitService manages peer visits.
type PeerVisitService = ActivityService[models.PeerVisit, *models.PeerVisit]

// NewPeerVisitService constructs the peer visit CRUD service.
func NewPeerVisitService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *PeerVisitService {
	return newActivityService[models.PeerVisit, *models.PeerVisit](activityKind[models.PeerVisit]{
		key:        models.KeyPeerVisits,
		noun:       "peer visit",
		permission: models.PermViewPeerVisits,
		items:      func(c *models.Collections) *[]models.PeerVisit { return &c.PeerVisits },
		visible:    func(v models.VisibleSet) []models.PeerVisit { return v.PeerVisits },
		date:       func(p models.PeerVisit) string { return p.Date },
		prepare:    func(p *models.PeerVisit) { defaultStatus(&p.Status) },
	}, state, scope, validate, logger)
}

// DeliverySheetService manages delivery records.
type DeliverySheetService = ActivityService[models.DeliverySheet, *models.DeliverySheet]

// NewDeliverySheetService constructs the delivery sheet CRUD service. A sheet
// whose items are all delivered is marked done.
func NewDeliverySheetService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *DeliverySheetService {
	return newActivityService[models.DeliverySheet, *models.DeliverySheet](activityKind[models.DeliverySheet]{
		key:        models.KeyDeliverySheets,
		noun:       "delivery sheet",
		permission: models.PermViewDeliveryRecords,
		items:      func(c *models.Collections) *[]models.DeliverySheet { return &c.DeliverySheets },
		visible:    func(v models.VisibleSet) []models.DeliverySheet { return v.DeliverySheets },
		prepare: func(d *models.DeliverySheet) {
			delivered := 0
			for _, it := range d.Items {
				if it.Delivered {
					delivered++
				}
			}
			switch {
			case len(d.Items) > 0 && delivered == len(d.Items):
				d.Status = models.StatusDone
			case delivered > 0:
				d.Status = models.StatusInProgress
			default:
				defaultStatus(&d.Status)
			}
		},
	}, state, scope, validate, logger)
}

// BulkMessageService manages broadcast drafts.
type BulkMessageService = ActivityService[models.BulkMessage, *models.BulkMessage]

// NewBulkMessageService constructs the bulk message CRUD service.
func NewBulkMessageService(state stateStore, scope visibilityProvider, validate *validator.Validate, logger *zap.Logger) *BulkMessageService {
	return newActivityService[models.BulkMessage, *models.BulkMessage](activityKind[models.BulkMessage]{
		key:        models.KeyBulkMessages,
		noun:       "bulk message",
		permission: models.PermViewBulkMessages,
		items:      func(c *models.Collections) *[]models.BulkMessage { return &c.BulkMessages },
		visible:    func(v models.VisibleSet) []models.BulkMessage { return v.BulkMessages },
		date:       func(b models.BulkMessage) string { return b.Date },
		prepare: func(b *models.BulkMessage) {
			b.Recipients = trimAll(b.Recipients)
			defaultStatus(&b.Status)
		},
	}, state, scope, validate, logger)
}
