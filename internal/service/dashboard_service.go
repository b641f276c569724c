package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes aggregate views over the session's visible reports.
// Results are cached per (school, year, user, content digest, filter), so any
// write to the collections invalidates them implicitly, across restarts and instances.
type DashboardService struct {
	state  digestedState
	scope  visibilityProvider
	cache  *CacheService
	logger *zap.Logger
	cfg    DashboardServiceConfig
}

// digestedState adds a content digest to the collections workspace.
type digestedState interface {
	stateStore
	SnapshotWithDigest() (*models.Collections, uint64, string)
}

// NewDashboardService constructs a DashboardService. cache may be nil.
func NewDashboardService(state digestedState, scope visibilityProvider, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{state: state, scope: scope, cache: cache, logger: logger, cfg: cfg}
}

// Overview counts what the session can see, with a performance summary when permitted.
func (s *DashboardService) Overview(ctx context.Context, sess *models.Session) (*dto.DashboardOverview, bool, error) {
	if err := requireSession(sess); err != nil {
		return nil, false, err
	}
	c, rev, digest := s.state.SnapshotWithDigest()
	var out dto.DashboardOverview
	key := s.cacheKeyFor("overview", sess, digest, models.ReportFilter{})
	if s.cache.Get(ctx, key, &out) {
		return &out, true, nil
	}

	v := s.scope.Visible(c, rev, sess)
	out = dto.DashboardOverview{
		School:          sess.SelectedSchool,
		AcademicYear:    sess.AcademicYear,
		Teachers:        len(v.Teachers),
		Reports:         len(v.Reports),
		Tasks:           len(v.Tasks),
		Meetings:        len(v.Meetings),
		PeerVisits:      len(v.PeerVisits),
		CoverageReports: len(v.SyllabusCoverageReports),
	}
	for _, t := range v.Tasks {
		if t.Status != models.StatusDone {
			out.OpenTasks++
		}
	}
	if sess.HasPermission(models.PermViewPerformanceDashboard) {
		out.Performance = Performance(v.Reports, teacherNames(v.Teachers))
	} else {
		out.Performance = Performance(nil, nil)
	}
	s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
	return &out, false, nil
}

// Aggregate returns the teacher x criterion table for the filtered reports.
func (s *DashboardService) Aggregate(ctx context.Context, sess *models.Session, filter models.ReportFilter) (*dto.AggregateTable, bool, error) {
	if err := requirePermission(sess, models.PermViewAggregatedReports); err != nil {
		return nil, false, err
	}
	c, rev, digest := s.state.SnapshotWithDigest()
	var table dto.AggregateTable
	key := s.cacheKeyFor("aggregate", sess, digest, filter)
	if s.cache.Get(ctx, key, &table) {
		return &table, true, nil
	}

	v := s.scope.Visible(c, rev, sess)
	reports := FilterReports(v.Reports, filter)
	table = AggregateByTeacher(reports, nil)
	names := teacherNames(v.Teachers)
	for i := range table.Rows {
		table.Rows[i].TeacherName = names[table.Rows[i].TeacherID]
	}
	s.cache.Set(ctx, key, table, s.cfg.CacheTTL)
	return &table, false, nil
}

// Analysis returns per-criterion means for the filtered reports, weakest first.
func (s *DashboardService) Analysis(ctx context.Context, sess *models.Session, filter models.ReportFilter) ([]dto.CriterionAnalysis, bool, error) {
	if err := requirePermission(sess, models.PermViewEvaluationAnalysis); err != nil {
		return nil, false, err
	}
	c, rev, digest := s.state.SnapshotWithDigest()
	var out []dto.CriterionAnalysis
	key := s.cacheKeyFor("analysis", sess, digest, filter)
	if s.cache.Get(ctx, key, &out) {
		return out, true, nil
	}
	out = EvaluationAnalysis(FilterReports(s.scope.Visible(c, rev, sess).Reports, filter))
	s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
	return out, false, nil
}

// Performance ranks visible teachers by their average report score.
func (s *DashboardService) Performance(ctx context.Context, sess *models.Session, filter models.ReportFilter) (*dto.PerformanceSummary, bool, error) {
	if err := requirePermission(sess, models.PermViewPerformanceDashboard); err != nil {
		return nil, false, err
	}
	c, rev, digest := s.state.SnapshotWithDigest()
	var out dto.PerformanceSummary
	key := s.cacheKeyFor("performance", sess, digest, filter)
	if s.cache.Get(ctx, key, &out) {
		return &out, true, nil
	}
	v := s.scope.Visible(c, rev, sess)
	out = Performance(FilterReports(v.Reports, filter), teacherNames(v.Teachers))
	s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
	return &out, false, nil
}

// cacheKeyFor hashes the user fingerprint and filter so keys stay short and carry no names.
func (s *DashboardService) cacheKeyFor(kind string, sess *models.Session, digest string, f models.ReportFilter) string {
	scope, _ := json.Marshal(struct {
		User   string              `json:"u"`
		Filter models.ReportFilter `json:"f"`
	}{sess.User.Fingerprint(), f})
	sum := sha256.Sum256(scope)
	return fmt.Sprintf("dash:%s:%s:%s:%s:%s", kind, sess.SelectedSchool, sess.AcademicYear,
		digest, hex.EncodeToString(sum[:12]))
}

func teacherNames(teachers []models.Teacher) map[string]string {
	names := make(map[string]string, len(teachers))
	for _, t := range teachers {
		names[t.ID] = t.Name
	}
	return names
}
