package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
)

func TestStateServiceLoadMigratesLegacyRecords(t *testing.T) {
	state, store := newLoadedState(t, &models.Collections{
		Schools:  []string{schoolA, schoolB},
		Teachers: []models.Teacher{{ID: "t1", Name: "Legacy"}, {ID: "t2", Name: "Tagged", School: schoolB}},
		Tasks:    []models.Task{{Record: models.Record{ID: "k1"}, Title: "untagged"}},
		Users:    []models.User{{ID: "u1", Name: "Floating"}},
	})

	c, rev := state.Snapshot()
	assert.Equal(t, uint64(1), rev)
	assert.Equal(t, schoolA, c.Teachers[0].School)
	assert.Equal(t, schoolB, c.Teachers[1].School)
	assert.Equal(t, schoolA, c.Tasks[0].School)
	assert.Empty(t, c.Users[0].SchoolName)

	var persisted []models.Teacher
	ok, err := kvstore.LoadJSON(context.Background(), store, models.KeyTeachers, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, schoolA, persisted[0].School)
}

func TestStateServiceLoadSeedsSchools(t *testing.T) {
	store := kvstore.NewMemory()
	state := NewStateService(store, []string{schoolA}, nil)
	require.NoError(t, state.Load(context.Background()))

	var schools []string
	ok, err := kvstore.LoadJSON(context.Background(), store, models.KeySchools, &schools)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{schoolA}, schools)

	_, exists, err := store.Get(context.Background(), models.KeyReports)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStateServiceLoadIsolatesCorruptCollection(t *testing.T) {
	ctx := context.Background()
	corrupt := []byte(`[{"id":"r1","criteria":[{"score":"high"}]}]`)
	store := kvstore.NewMemory()
	require.NoError(t, kvstore.SaveJSON(ctx, store, models.KeyTeachers,
		[]models.Teacher{{ID: "t1", Name: "A", School: schoolA}}))
	require.NoError(t, store.Set(ctx, models.KeyReports, corrupt))

	state := NewStateService(store, []string{schoolA}, nil)
	require.NoError(t, state.Load(ctx))
	assert.Equal(t, []string{models.KeyReports}, state.Unreadable())

	c, _ := state.Snapshot()
	assert.Empty(t, c.Reports)
	assert.Len(t, c.Teachers, 1)

	err := state.Mutate(ctx, func(c *models.Collections) error {
		c.Reports = append(c.Reports, models.Report{Record: models.Record{ID: "r2", School: schoolA}})
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	raw, _, err := store.Get(ctx, models.KeyReports)
	require.NoError(t, err)
	assert.Equal(t, string(corrupt), string(raw))

	require.NoError(t, state.Mutate(ctx, func(c *models.Collections) error {
		c.Teachers = append(c.Teachers, models.Teacher{ID: "t2", Name: "B", School: schoolA})
		return nil
	}))
	c, _ = state.Snapshot()
	assert.Len(t, c.Teachers, 2)

	require.NoError(t, store.Set(ctx, models.KeyReports, []byte(`[]`)))
	require.NoError(t, state.Reload(ctx))
	assert.Empty(t, state.Unreadable())
}

func TestStateServiceLoadFailsOnStoreError(t *testing.T) {
	state := NewStateService(failingGetStore{kvstore.NewMemory()}, nil, nil)
	require.Error(t, state.Load(context.Background()))
}

type failingGetStore struct {
	*kvstore.Memory
}

func (failingGetStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("io error")
}

func TestStateServiceMutatePersistsOnlyChangedKeys(t *testing.T) {
	state, store := newLoadedState(t, &models.Collections{
		Schools:  []string{schoolA},
		Teachers: []models.Teacher{{ID: "t1", Name: "A", School: schoolA}},
	})
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.KeyReports, []byte(`[ ]`)))

	err := state.Mutate(ctx, func(c *models.Collections) error {
		c.Teachers = append(c.Teachers, models.Teacher{ID: "t2", Name: "B", School: schoolA})
		return nil
	})
	require.NoError(t, err)

	c, rev := state.Snapshot()
	assert.Len(t, c.Teachers, 2)
	assert.Equal(t, uint64(2), rev)

	raw, _, err := store.Get(ctx, models.KeyReports)
	require.NoError(t, err)
	assert.Equal(t, `[ ]`, string(raw), "untouched collections are not rewritten")
}

func TestStateServiceMutateErrorLeavesStateIntact(t *testing.T) {
	state, _ := newLoadedState(t, &models.Collections{
		Teachers: []models.Teacher{{ID: "t1", Name: "A", School: schoolA}},
	})
	before, rev := state.Snapshot()

	err := state.Mutate(context.Background(), func(c *models.Collections) error {
		c.Teachers = nil
		return errors.New("abort")
	})
	require.Error(t, err)

	after, revAfter := state.Snapshot()
	assert.Same(t, before, after)
	assert.Equal(t, rev, revAfter)
	assert.Len(t, after.Teachers, 1)
}

func TestStateServiceNoopMutationKeepsRevision(t *testing.T) {
	state, _ := newLoadedState(t, &models.Collections{Schools: []string{schoolA}})
	_, rev := state.Snapshot()
	require.NoError(t, state.Mutate(context.Background(), func(c *models.Collections) error { return nil }))
	assert.Equal(t, rev, state.Revision())
}

func TestMigrateLegacySchoolTagsWithoutSchools(t *testing.T) {
	c := &models.Collections{Teachers: []models.Teacher{{ID: "t1"}}}
	assert.Equal(t, 0, MigrateLegacySchoolTags(c))
	assert.Empty(t, c.Teachers[0].School)
}
