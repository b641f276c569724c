package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type memoryCacheRepo struct {
	values map[string][]byte
	sets   int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.sets++
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.values = map[string][]byte{}
	return nil
}

func newDashboardFixture(t *testing.T) (*DashboardService, *StateService, *memoryCacheRepo) {
	t.Helper()
	state, _ := newLoadedState(t, &models.Collections{
		Schools: []string{schoolA, schoolB},
		Teachers: []models.Teacher{
			{ID: "t1", Name: "Amal", School: schoolA},
			{ID: "t2", Name: "Badr", School: schoolA},
		},
		Reports: []models.Report{
			generalReport("r1", "t1", schoolA, "2024-01-10", 4, 3),
			generalReport("r2", "t1", schoolA, "2024-02-10", 2, 2),
			generalReport("r3", "t2", schoolA, "2024-02-11", 4, 4),
		},
		Tasks: []models.Task{
			{Record: models.Record{ID: "k1", School: schoolA, AuthorID: models.AdminUserID}, Title: "a", Status: models.StatusDone},
			{Record: models.Record{ID: "k2", School: schoolA, AuthorID: models.AdminUserID}, Title: "b", Status: models.StatusNotDone},
		},
	})
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	return NewDashboardService(state, NewScopeEngine(nil), cache, nil, DashboardServiceConfig{}), state, repo
}

func TestDashboardAggregateNamesAndCaching(t *testing.T) {
	svc, state, repo := newDashboardFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	table, cached, err := svc.Aggregate(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Amal", table.Rows[0].TeacherName)
	assert.InDelta(t, 68.75, table.Rows[0].Percentage, 0.001)
	assert.InDelta(t, 100, table.Rows[1].Percentage, 0.001)

	again, cached, err := svc.Aggregate(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, table.Rows[0].TeacherName, again.Rows[0].TeacherName)

	filtered, cached, err := svc.Aggregate(ctx, sess, models.ReportFilter{From: "2024-02"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, filtered.Rows, 2)
	assert.InDelta(t, 50, filtered.Rows[0].Percentage, 0.001)

	require.NoError(t, state.Mutate(ctx, func(c *models.Collections) error {
		c.Reports = c.Reports[:1]
		return nil
	}))
	fresh, cached, err := svc.Aggregate(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, fresh.Rows, 1)
	assert.Equal(t, 3, repo.sets)
}

func TestDashboardCacheKeyFollowsContentAcrossRestarts(t *testing.T) {
	svc, state, repo := newDashboardFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	_, cached, err := svc.Aggregate(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	assert.False(t, cached)

	restarted := NewStateService(state.Store(), nil, nil)
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, state.Digest(), restarted.Digest())
	_, cached, err = NewDashboardService(restarted, NewScopeEngine(nil), cache, nil, DashboardServiceConfig{}).
		Aggregate(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	assert.True(t, cached)

	other := NewStateService(state.Store(), nil, nil)
	require.NoError(t, other.Load(ctx))
	require.NoError(t, other.Mutate(ctx, func(c *models.Collections) error {
		c.Reports = c.Reports[:1]
		return nil
	}))

	again := NewStateService(state.Store(), nil, nil)
	require.NoError(t, again.Load(ctx))
	_, rev := again.Snapshot()
	_, staleRev := state.Snapshot()
	require.Equal(t, staleRev, rev)
	assert.NotEqual(t, state.Digest(), again.Digest())

	table, cached, err := NewDashboardService(again, NewScopeEngine(nil), cache, nil, DashboardServiceConfig{}).
		Aggregate(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, table.Rows, 1)
}

func TestDashboardPermissions(t *testing.T) {
	svc, _, _ := newDashboardFixture(t)
	ctx := context.Background()
	sess := sessionFor(supervisor("viewer", models.PermViewTeachers), schoolA)

	_, _, err := svc.Aggregate(ctx, sess, models.ReportFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, _, err = svc.Analysis(ctx, sess, models.ReportFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, _, err = svc.Performance(ctx, sess, models.ReportFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	overview, _, err := svc.Overview(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.Teachers)
	assert.Equal(t, 0, overview.Performance.ReportCount)
}

func TestDashboardOverviewAndPerformance(t *testing.T) {
	svc, _, _ := newDashboardFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	overview, _, err := svc.Overview(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 3, overview.Reports)
	assert.Equal(t, 2, overview.Tasks)
	assert.Equal(t, 1, overview.OpenTasks)
	assert.Equal(t, 3, overview.Performance.ReportCount)

	perf, _, err := svc.Performance(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, perf.Teachers, 2)
	assert.Equal(t, "t2", perf.Teachers[0].TeacherID)
	assert.Equal(t, "Badr", perf.Teachers[0].TeacherName)
	assert.Equal(t, BandExcellent, perf.Teachers[0].Band)

	analysis, _, err := svc.Analysis(ctx, sess, models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, analysis, 2)
	assert.LessOrEqual(t, analysis[0].Percentage, analysis[1].Percentage)
}
