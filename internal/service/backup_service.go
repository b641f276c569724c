package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
)

// DefaultHistorySlots bounds the rotating import history.
const DefaultHistorySlots = 5

type reloadableState interface {
	stateStore
	Reload(ctx context.Context) error
}

// BackupConfig tunes backup behaviour.
type BackupConfig struct {
	HistorySlots int
}

// BackupSummary describes an applied import.
type BackupSummary struct {
	Keys      []string `json:"keys"`
	HistoryID string   `json:"historyId"`
}

// HistoryEntry lists one archived slot without its payload.
type HistoryEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Source    string    `json:"source,omitempty"`
	Keys      int       `json:"keys"`
}

// BackupService exports and restores persisted keys. Imports are all or
// nothing: the file is fully validated before anything is written.
type BackupService struct {
	store  kvstore.Store
	state  reloadableState
	logger *zap.Logger
	cfg    BackupConfig
	now    func() time.Time
}

// NewBackupService constructs a BackupService.
func NewBackupService(store kvstore.Store, state reloadableState, logger *zap.Logger, cfg BackupConfig) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistorySlots <= 0 {
		cfg.HistorySlots = DefaultHistorySlots
	}
	return &BackupService{store: store, state: state, logger: logger, cfg: cfg, now: time.Now}
}

// ParseSlice reads "full", "teacher:<id>", "school:<name>" or "evaluation_type:<type>".
func ParseSlice(raw string) (models.BackupSlice, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == models.SliceFull {
		return models.BackupSlice{Kind: models.SliceFull}, nil
	}
	kind, value, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(value) == "" {
		return models.BackupSlice{}, appErrors.Clone(appErrors.ErrValidation, "invalid backup slice "+raw)
	}
	switch kind {
	case models.SliceTeacher, models.SliceSchool:
	case models.SliceEvaluationType:
		if !models.EvaluationType(value).Valid() {
			return models.BackupSlice{}, appErrors.Clone(appErrors.ErrValidation, "unknown evaluation type "+value)
		}
	default:
		return models.BackupSlice{}, appErrors.Clone(appErrors.ErrValidation, "invalid backup slice "+raw)
	}
	return models.BackupSlice{Kind: kind, Value: strings.TrimSpace(value)}, nil
}

// Export builds a backup file for the slice.
func (s *BackupService) Export(ctx context.Context, sess *models.Session, slice models.BackupSlice) (models.BackupFile, error) {
	if err := requirePermission(sess, models.PermManageData); err != nil {
		return nil, err
	}
	return s.ExportSlice(ctx, slice)
}

// ExportSlice builds a backup file without a session, for administrative tooling.
// A full export copies the stored values verbatim so a later import is byte-identical.
func (s *BackupService) ExportSlice(ctx context.Context, slice models.BackupSlice) (models.BackupFile, error) {
	if slice.Kind == models.SliceFull || slice.Kind == "" {
		return s.rawBackup(ctx)
	}
	c, _ := s.state.Snapshot()
	var part models.Collections
	switch slice.Kind {
	case models.SliceTeacher:
		part = teacherSlice(c, slice.Value)
		if len(part.Teachers) == 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
	case models.SliceSchool:
		if findIndex(c.Schools, func(v string) bool { return v == slice.Value }) < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		part = schoolSlice(c, slice.Value)
	case models.SliceEvaluationType:
		part = evaluationTypeSlice(c, models.EvaluationType(slice.Value))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid backup slice")
	}
	file := models.BackupFile{}
	for key, field := range part.Fields() {
		raw, err := json.Marshal(field)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if string(raw) == "null" {
			continue
		}
		file[key] = string(raw)
	}
	return file, nil
}

// Import validates and applies a backup file after archiving the current values.
func (s *BackupService) Import(ctx context.Context, sess *models.Session, file models.BackupFile, source string) (*BackupSummary, error) {
	if err := requirePermission(sess, models.PermManageData); err != nil {
		return nil, err
	}
	summary, err := s.Restore(ctx, file, source)
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup imported", zap.String("actor_id", sess.UserID()), zap.Int("keys", len(summary.Keys)))
	return summary, nil
}

// Restore applies file without a session. Keys absent from the file are left untouched.
func (s *BackupService) Restore(ctx context.Context, file models.BackupFile, source string) (*BackupSummary, error) {
	keys, err := ValidateBackup(file)
	if err != nil {
		return nil, err
	}

	current, err := s.rawBackup(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current values")
	}
	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := models.HistorySnapshot{ID: newID(), CreatedAt: s.now().UTC(), Source: source, Data: current}
	history = append([]models.HistorySnapshot{snapshot}, history...)
	if len(history) > s.cfg.HistorySlots {
		history = history[:s.cfg.HistorySlots]
	}
	encodedHistory, err := json.Marshal(history)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode history")
	}

	writes := make(map[string][]byte, len(keys)+1)
	for _, key := range keys {
		writes[key] = []byte(file[key])
	}
	writes[models.KeyHistoryBackups] = encodedHistory
	if err := s.store.SetMany(ctx, writes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write backup")
	}
	if err := s.state.Reload(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload state")
	}
	return &BackupSummary{Keys: keys, HistoryID: snapshot.ID}, nil
}

// History lists archived slots, newest first.
func (s *BackupService) History(ctx context.Context, sess *models.Session) ([]HistoryEntry, error) {
	if err := requirePermission(sess, models.PermManageData); err != nil {
		return nil, err
	}
	return s.ListHistory(ctx)
}

// ListHistory is History without the permission check, for trusted callers.
func (s *BackupService) ListHistory(ctx context.Context) ([]HistoryEntry, error) {
	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(history))
	for _, h := range history {
		out = append(out, HistoryEntry{ID: h.ID, CreatedAt: h.CreatedAt, Source: h.Source, Keys: len(h.Data)})
	}
	return out, nil
}

// RestoreHistory re-applies an archived slot. The values it replaces are archived in turn.
func (s *BackupService) RestoreHistory(ctx context.Context, sess *models.Session, id string) (*BackupSummary, error) {
	if err := requirePermission(sess, models.PermManageData); err != nil {
		return nil, err
	}
	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	idx := findIndex(history, func(h models.HistorySnapshot) bool { return h.ID == id })
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "history entry not found")
	}
	return s.Restore(ctx, history[idx].Data, "history:"+id)
}

// ValidateBackup checks every entry and returns the keys to write, sorted.
// The history key is skipped; unknown keys and undecodable values reject the file.
func ValidateBackup(file models.BackupFile) ([]string, error) {
	if len(file) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidBackup, "backup file is empty")
	}
	keys := make([]string, 0, len(file))
	for key, value := range file {
		if key == models.KeyHistoryBackups {
			continue
		}
		if !models.IsBackupKey(key) {
			return nil, appErrors.Clone(appErrors.ErrInvalidBackup, "unknown key "+key)
		}
		if !json.Valid([]byte(value)) {
			return nil, appErrors.Clone(appErrors.ErrInvalidBackup, "value of "+key+" is not valid JSON")
		}
		probe := (&models.Collections{}).Fields()
		if dest, ok := probe[key]; ok {
			if err := json.Unmarshal([]byte(value), dest); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInvalidBackup.Code, appErrors.ErrInvalidBackup.Status, "value of "+key+" has the wrong shape")
			}
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidBackup, "backup file has no restorable keys")
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *BackupService) rawBackup(ctx context.Context) (models.BackupFile, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	file := models.BackupFile{}
	for _, key := range keys {
		if !models.IsBackupKey(key) {
			continue
		}
		raw, ok, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			file[key] = string(raw)
		}
	}
	return file, nil
}

func (s *BackupService) loadHistory(ctx context.Context) ([]models.HistorySnapshot, error) {
	var history []models.HistorySnapshot
	if _, err := kvstore.LoadJSON(ctx, s.store, models.KeyHistoryBackups, &history); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load backup history")
	}
	return history, nil
}

func teacherSlice(c *models.Collections, teacherID string) models.Collections {
	var part models.Collections
	for _, t := range c.Teachers {
		if t.ID == teacherID {
			part.Teachers = append(part.Teachers, t)
		}
	}
	reportIDs := idSet{}
	for _, r := range c.Reports {
		if r.TeacherID == teacherID {
			part.Reports = append(part.Reports, r)
			reportIDs[r.ID] = struct{}{}
		}
	}
	for _, r := range c.SyllabusCoverageReports {
		if r.TeacherID == teacherID {
			part.SyllabusCoverageReports = append(part.SyllabusCoverageReports, r)
		}
	}
	for _, cc := range c.CustomCriteria {
		if !cc.IsGeneral && reportIDs.has(cc.ReportID) {
			part.CustomCriteria = append(part.CustomCriteria, cc)
		}
	}
	return part
}

func schoolSlice(c *models.Collections, school string) models.Collections {
	part := models.Collections{
		Schools:                 []string{school},
		Teachers:                inSchool(c.Teachers, school),
		Reports:                 inSchool(c.Reports, school),
		CustomCriteria:          inSchool(c.CustomCriteria, school),
		SpecialReportTemplates:  inSchool(c.SpecialReportTemplates, school),
		HiddenCriteria:          inSchool(c.HiddenCriteria, school),
		SyllabusPlans:           inSchool(c.SyllabusPlans, school),
		SyllabusCoverageReports: inSchool(c.SyllabusCoverageReports, school),
		Tasks:                   inSchool(c.Tasks, school),
		Meetings:                inSchool(c.Meetings, school),
		PeerVisits:              inSchool(c.PeerVisits, school),
		DeliverySheets:          inSchool(c.DeliverySheets, school),
		BulkMessages:            inSchool(c.BulkMessages, school),
		SupervisoryPlans:        inSchool(c.SupervisoryPlans, school),
	}
	for _, u := range c.Users {
		if u.SchoolName == school {
			part.Users = append(part.Users, u)
		}
	}
	return part
}

func evaluationTypeSlice(c *models.Collections, t models.EvaluationType) models.Collections {
	var part models.Collections
	for _, r := range c.Reports {
		if r.EvaluationType == t {
			part.Reports = append(part.Reports, r)
		}
	}
	for _, cc := range c.CustomCriteria {
		if cc.EvaluationType == t {
			part.CustomCriteria = append(part.CustomCriteria, cc)
		}
	}
	for _, h := range c.HiddenCriteria {
		if h.EvaluationType == t {
			part.HiddenCriteria = append(part.HiddenCriteria, h)
		}
	}
	if t == models.EvaluationSpecial {
		part.SpecialReportTemplates = c.SpecialReportTemplates
	}
	return part
}
