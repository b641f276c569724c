package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/ai"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/jobs"
)

const importJobType = "teacher_import"

type teacherImporter interface {
	List(ctx context.Context, sess *models.Session) ([]models.Teacher, error)
	Create(ctx context.Context, sess *models.Session, req TeacherInput) (*models.Teacher, error)
	ApplyPatch(ctx context.Context, sess *models.Session, patch TeacherPatch) (*models.Teacher, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
	Status(id string) (jobs.Status, bool)
}

type importRecorder interface {
	RecordImportJob(state string)
}

// ImportRequest submits free text for teacher extraction. With Apply unset the
// job only reports what it would change.
type ImportRequest struct {
	Text  string `json:"text" validate:"required,max=20000"`
	Apply bool   `json:"apply"`
}

// ImportResult is the outcome of one extraction job.
type ImportResult struct {
	Extracted []TeacherImport  `json:"extracted"`
	New       []TeacherImport  `json:"new"`
	Patches   []TeacherPatch   `json:"patches"`
	Unchanged []string         `json:"unchanged"`
	Applied   bool             `json:"applied"`
	Created   []models.Teacher `json:"created,omitempty"`
	Updated   []models.Teacher `json:"updated,omitempty"`
}

type importPayload struct {
	session *models.Session
	request ImportRequest
}

// ImportService extracts teachers from free text on a background queue and
// merges them into the selected school's roster.
type ImportService struct {
	teachers  teacherImporter
	ai        textCompleter
	validator *validator.Validate
	logger    *zap.Logger
	metrics   importRecorder
	queue     jobQueue

	mu     sync.Mutex
	owners map[string]string
}

// NewImportService constructs an ImportService. Attach a queue with UseQueue
// before submitting jobs; the queue's handler should be Handle.
func NewImportService(teachers teacherImporter, completer textCompleter, metrics importRecorder, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		teachers:  teachers,
		ai:        completer,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		owners:    map[string]string{},
	}
}

// UseQueue attaches the job queue.
func (s *ImportService) UseQueue(q jobQueue) {
	s.queue = q
}

// Submit queues an extraction job and returns its initial status.
func (s *ImportService) Submit(ctx context.Context, sess *models.Session, req ImportRequest) (*jobs.Status, error) {
	if err := requirePermission(sess, models.PermAddTeacher); err != nil {
		return nil, err
	}
	if req.Apply {
		if err := requirePermission(sess, models.PermEditTeacher); err != nil {
			return nil, err
		}
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid import request")
	}
	if s.ai == nil || s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrAIUnavailable, "text extraction is not configured")
	}

	job := jobs.Job{ID: newID(), Type: importJobType, Payload: importPayload{session: sess, request: req}}
	s.mu.Lock()
	s.owners[job.ID] = sess.UserID()
	s.mu.Unlock()
	if err := s.queue.Enqueue(job); err != nil {
		s.mu.Lock()
		delete(s.owners, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue import")
	}
	s.logger.Info("teacher import queued", zap.String("job_id", job.ID), zap.String("actor_id", sess.UserID()))

	status, ok := s.queue.Status(job.ID)
	if !ok {
		status = jobs.Status{ID: job.ID, Type: importJobType, State: jobs.StateQueued}
	}
	return &status, nil
}

// Status returns a job submitted by the same user.
func (s *ImportService) Status(ctx context.Context, sess *models.Session, id string) (*jobs.Status, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	s.mu.Lock()
	owner, known := s.owners[id]
	s.mu.Unlock()
	if !known || owner != sess.UserID() || s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
	}
	status, ok := s.queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
	}
	return &status, nil
}

// Handle runs one queued job. It is the queue's handler.
func (s *ImportService) Handle(ctx context.Context, job jobs.Job) (any, error) {
	payload, ok := job.Payload.(importPayload)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "unexpected import payload")
	}
	result, err := s.Run(ctx, payload.session, payload.request)
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordImportJob(string(jobs.StateFailed))
		} else {
			s.metrics.RecordImportJob(string(jobs.StateSucceeded))
		}
	}
	if err != nil {
		s.logger.Warn("teacher import failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Run extracts teachers from req.Text synchronously.
func (s *ImportService) Run(ctx context.Context, sess *models.Session, req ImportRequest) (*ImportResult, error) {
	if s.ai == nil {
		return nil, appErrors.Clone(appErrors.ErrAIUnavailable, "text extraction is not configured")
	}
	existing, err := s.teachers.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(existing))
	for _, t := range existing {
		names = append(names, t.Name)
	}

	reply, err := s.ai.Complete(ctx, ai.TeacherImportPrompt(req.Text, names))
	if err != nil {
		return nil, err
	}
	extracted, err := ParseTeacherImports(reply)
	if err != nil {
		return nil, err
	}

	result := PlanTeacherImport(existing, extracted)
	if !req.Apply {
		return result, nil
	}
	for _, imp := range result.New {
		created, err := s.teachers.Create(ctx, sess, TeacherInput{
			Name:          imp.Name,
			Subjects:      imp.Subjects,
			Grades:        imp.Grades,
			Sections:      imp.Sections,
			Branch:        imp.Branch,
			Qualification: imp.Qualification,
			Phone:         imp.Phone,
			Notes:         imp.Notes,
		})
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, *created)
	}
	for _, patch := range result.Patches {
		updated, err := s.teachers.ApplyPatch(ctx, sess, patch)
		if err != nil {
			return nil, err
		}
		result.Updated = append(result.Updated, *updated)
	}
	result.Applied = true
	return result, nil
}

// ParseTeacherImports decodes a model reply holding either an array of
// teachers or an object with a "teachers" array. Nameless entries are dropped.
func ParseTeacherImports(reply string) ([]TeacherImport, error) {
	raw, err := ai.ExtractJSON(reply)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAIUnavailable.Code, appErrors.ErrAIUnavailable.Status, "extraction reply was not understood")
	}
	var items []TeacherImport
	if strings.HasPrefix(raw, "{") {
		var wrapped struct {
			Teachers []TeacherImport `json:"teachers"`
		}
		err = json.Unmarshal([]byte(raw), &wrapped)
		items = wrapped.Teachers
	} else {
		err = json.Unmarshal([]byte(raw), &items)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAIUnavailable.Code, appErrors.ErrAIUnavailable.Status, "extraction reply was not understood")
	}
	out := items[:0]
	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// PlanTeacherImport matches each extracted record against existing teachers.
// Matches become patches (or unchanged when nothing would change); the rest are new.
// Two extracted records naming the same new teacher are merged.
func PlanTeacherImport(existing []models.Teacher, extracted []TeacherImport) *ImportResult {
	result := &ImportResult{Extracted: extracted}
	patchIdx := map[string]int{}
	for _, imp := range extracted {
		idx := MatchTeacher(existing, imp.Name)
		if idx < 0 {
			if j := matchImport(result.New, imp.Name); j >= 0 {
				result.New[j] = mergeImports(result.New[j], imp)
				continue
			}
			result.New = append(result.New, imp)
			continue
		}
		target := existing[idx]
		if j, ok := patchIdx[target.ID]; ok {
			target = result.Patches[j].Apply(target)
			next := BuildTeacherPatch(target, imp)
			result.Patches[j] = combinePatches(result.Patches[j], next)
			continue
		}
		patch := BuildTeacherPatch(target, imp)
		if patch.Empty() {
			result.Unchanged = append(result.Unchanged, target.ID)
			continue
		}
		patchIdx[target.ID] = len(result.Patches)
		result.Patches = append(result.Patches, patch)
	}
	return result
}

func matchImport(items []TeacherImport, name string) int {
	needle := normalizeName(name)
	for i, item := range items {
		if normalizeName(item.Name) == needle {
			return i
		}
	}
	return -1
}

func mergeImports(a, b TeacherImport) TeacherImport {
	a.Subjects = mergeUnique(a.Subjects, b.Subjects)
	a.Grades = mergeUnique(a.Grades, b.Grades)
	a.Sections = mergeUnique(a.Sections, b.Sections)
	fillEmpty(&a.Branch, b.Branch)
	fillEmpty(&a.Qualification, b.Qualification)
	fillEmpty(&a.Phone, b.Phone)
	fillEmpty(&a.Notes, b.Notes)
	return a
}

func fillEmpty(dst *string, src string) {
	if *dst == "" {
		*dst = strings.TrimSpace(src)
	}
}

func combinePatches(a, b TeacherPatch) TeacherPatch {
	a.Subjects = mergeUnique(a.Subjects, b.Subjects)
	a.Grades = mergeUnique(a.Grades, b.Grades)
	a.Sections = mergeUnique(a.Sections, b.Sections)
	if b.Branch != nil {
		a.Branch = b.Branch
	}
	if b.Qualification != nil {
		a.Qualification = b.Qualification
	}
	if b.Phone != nil {
		a.Phone = b.Phone
	}
	if b.Notes != nil {
		a.Notes = b.Notes
	}
	return a
}
