package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

func backupFixture(t *testing.T) (*BackupService, *StateService) {
	t.Helper()
	state, store := newLoadedState(t, &models.Collections{
		Schools:  []string{schoolA, schoolB},
		Teachers: []models.Teacher{{ID: "t1", Name: "Ada", School: schoolA}, {ID: "t2", Name: "Bo", School: schoolB}},
		Reports: []models.Report{
			generalReport("r1", "t1", schoolA, "2024-09-01", 4, 3),
			generalReport("r2", "t2", schoolB, "2024-09-02", 2),
		},
	})
	require.NoError(t, store.Set(context.Background(), "theme", []byte(`"dark"`)))
	return NewBackupService(store, state, nil, BackupConfig{}), state
}

func TestBackupFullRoundTripIsByteIdentical(t *testing.T) {
	svc, state := backupFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	original, err := svc.Export(ctx, sess, models.BackupSlice{Kind: models.SliceFull})
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, original["theme"])
	assert.NotContains(t, original, models.KeyHistoryBackups)

	require.NoError(t, state.Mutate(ctx, func(c *models.Collections) error {
		c.Teachers = c.Teachers[:1]
		return nil
	}))

	summary, err := svc.Import(ctx, sess, original, "upload")
	require.NoError(t, err)
	assert.NotEmpty(t, summary.HistoryID)

	restored, err := svc.Export(ctx, sess, models.BackupSlice{Kind: models.SliceFull})
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	c, _ := state.Snapshot()
	assert.Len(t, c.Teachers, 2)
}

func TestBackupImportRejectsInvalidFileWithoutWriting(t *testing.T) {
	svc, state := backupFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	cases := []models.BackupFile{
		{},
		{models.KeyTeachers: `[{"id":"x","name":"X"}]`, models.KeyReports: `not json`},
		{models.KeyTeachers: `{"id":"x"}`},
		{"somethingElse": `[]`},
	}
	for _, file := range cases {
		_, err := svc.Import(ctx, sess, file, "upload")
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidBackup))
	}

	c, _ := state.Snapshot()
	assert.Len(t, c.Teachers, 2)
	history, err := svc.History(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBackupHistoryRotatesAndRestores(t *testing.T) {
	svc, state := backupFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	for i := 0; i < DefaultHistorySlots+2; i++ {
		_, err := svc.Import(ctx, sess, models.BackupFile{models.KeyTheme: `"light"`}, "upload")
		require.NoError(t, err)
	}
	history, err := svc.History(ctx, sess)
	require.NoError(t, err)
	require.Len(t, history, DefaultHistorySlots)
	assert.True(t, !history[0].CreatedAt.Before(history[1].CreatedAt))

	oldest := history[len(history)-1]
	_, err = svc.Import(ctx, sess, models.BackupFile{models.KeyTeachers: `[]`}, "upload")
	require.NoError(t, err)
	c, _ := state.Snapshot()
	assert.Empty(t, c.Teachers)

	history, err = svc.History(ctx, sess)
	require.NoError(t, err)
	_, err = svc.RestoreHistory(ctx, sess, history[0].ID)
	require.NoError(t, err)
	c, _ = state.Snapshot()
	assert.Len(t, c.Teachers, 2)

	history, err = svc.History(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, history, DefaultHistorySlots)
	for _, h := range history {
		assert.NotEqual(t, oldest.ID, h.ID)
	}

	_, err = svc.RestoreHistory(ctx, sess, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestBackupSlices(t *testing.T) {
	svc, _ := backupFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	teacherFile, err := svc.Export(ctx, sess, models.BackupSlice{Kind: models.SliceTeacher, Value: "t2"})
	require.NoError(t, err)
	assert.Contains(t, teacherFile[models.KeyTeachers], `"t2"`)
	assert.NotContains(t, teacherFile[models.KeyReports], `"r1"`)
	assert.Contains(t, teacherFile[models.KeyReports], `"r2"`)

	schoolFile, err := svc.Export(ctx, sess, models.BackupSlice{Kind: models.SliceSchool, Value: schoolA})
	require.NoError(t, err)
	assert.Equal(t, `["North High"]`, schoolFile[models.KeySchools])
	assert.NotContains(t, schoolFile[models.KeyTeachers], "South High")

	typeFile, err := svc.Export(ctx, sess, models.BackupSlice{Kind: models.SliceEvaluationType, Value: "general"})
	require.NoError(t, err)
	assert.Contains(t, typeFile[models.KeyReports], `"r1"`)
	assert.NotContains(t, typeFile, models.KeyTeachers)

	_, err = svc.Export(ctx, sess, models.BackupSlice{Kind: models.SliceTeacher, Value: "ghost"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Export(ctx, sessionFor(supervisor("s1", models.PermViewSyllabus), schoolA), models.BackupSlice{Kind: models.SliceFull})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestParseSlice(t *testing.T) {
	slice, err := ParseSlice("")
	require.NoError(t, err)
	assert.Equal(t, models.SliceFull, slice.Kind)

	slice, err = ParseSlice("school:North High")
	require.NoError(t, err)
	assert.Equal(t, models.BackupSlice{Kind: models.SliceSchool, Value: schoolA}, slice)

	_, err = ParseSlice("evaluation_type:weekly")
	assert.Error(t, err)
	_, err = ParseSlice("teacher:")
	assert.Error(t, err)
}
