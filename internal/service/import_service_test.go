package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/jobs"
)

type importCounter struct {
	mu     sync.Mutex
	states []string
}

func (c *importCounter) RecordImportJob(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
}

func newImportFixture(t *testing.T, completer textCompleter) (*ImportService, *StateService, *importCounter) {
	t.Helper()
	state, _ := newLoadedState(t, &models.Collections{
		Schools: []string{schoolA, schoolB},
		Teachers: []models.Teacher{
			{ID: "t1", Name: "Ada Lovelace", School: schoolA, Subjects: []string{"Math"}},
			{ID: "t2", Name: "Grace Hopper", School: schoolA, Phone: "555-0001"},
		},
	})
	teachers := NewTeacherService(state, NewScopeEngine(nil), nil, nil)
	counter := &importCounter{}
	return NewImportService(teachers, completer, counter, nil, nil), state, counter
}

const extractionReply = "```json\n[" +
	`{"name":"ada lovelace","subjects":["Math","Physics"]},` +
	`{"name":"Grace Hopper","phone":"555-0001"},` +
	`{"name":"Alan Turing","grades":["10"]},` +
	`{"name":"  "}` +
	"]\n```"

func TestImportRunPreviewDoesNotWrite(t *testing.T) {
	svc, state, _ := newImportFixture(t, &stubCompleter{replies: []string{extractionReply}})
	sess := sessionFor(adminUser(), schoolA)

	result, err := svc.Run(context.Background(), sess, ImportRequest{Text: "staff list"})
	require.NoError(t, err)
	assert.Len(t, result.Extracted, 3)
	require.Len(t, result.New, 1)
	assert.Equal(t, "Alan Turing", result.New[0].Name)
	require.Len(t, result.Patches, 1)
	assert.Equal(t, "t1", result.Patches[0].TeacherID)
	assert.Equal(t, []string{"Physics"}, result.Patches[0].Subjects)
	assert.Equal(t, []string{"t2"}, result.Unchanged)
	assert.False(t, result.Applied)

	c, _ := state.Snapshot()
	assert.Len(t, c.Teachers, 2)
}

func TestImportRunApplyCreatesAndPatches(t *testing.T) {
	svc, state, _ := newImportFixture(t, &stubCompleter{replies: []string{extractionReply}})
	sess := sessionFor(adminUser(), schoolA)

	result, err := svc.Run(context.Background(), sess, ImportRequest{Text: "staff list", Apply: true})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.Len(t, result.Created, 1)
	assert.Equal(t, schoolA, result.Created[0].School)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, []string{"Math", "Physics"}, result.Updated[0].Subjects)

	c, _ := state.Snapshot()
	assert.Len(t, c.Teachers, 3)
}

func TestImportJobLifecycle(t *testing.T) {
	svc, _, counter := newImportFixture(t, &stubCompleter{replies: []string{extractionReply}})
	queue := jobs.NewQueue("imports", svc.Handle, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.UseQueue(queue)

	sess := sessionFor(adminUser(), schoolA)
	status, err := svc.Submit(context.Background(), sess, ImportRequest{Text: "staff list"})
	require.NoError(t, err)
	require.NotEmpty(t, status.ID)

	require.Eventually(t, func() bool {
		st, err := svc.Status(context.Background(), sess, status.ID)
		return err == nil && st.State == jobs.StateSucceeded
	}, time.Second, 5*time.Millisecond)

	st, err := svc.Status(context.Background(), sess, status.ID)
	require.NoError(t, err)
	result, ok := st.Result.(*ImportResult)
	require.True(t, ok)
	assert.Len(t, result.New, 1)
	counter.mu.Lock()
	assert.Equal(t, []string{"succeeded"}, counter.states)
	counter.mu.Unlock()

	other := sessionFor(supervisor("s1", models.PermAddTeacher), schoolA)
	_, err = svc.Status(context.Background(), other, status.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestImportJobFailureIsReported(t *testing.T) {
	svc, _, counter := newImportFixture(t, &stubCompleter{err: appErrors.Clone(appErrors.ErrAIUnavailable, "down")})
	queue := jobs.NewQueue("imports", svc.Handle, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.UseQueue(queue)

	sess := sessionFor(adminUser(), schoolA)
	status, err := svc.Submit(context.Background(), sess, ImportRequest{Text: "staff list"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := svc.Status(context.Background(), sess, status.ID)
		return err == nil && st.State == jobs.StateFailed
	}, time.Second, 5*time.Millisecond)
	counter.mu.Lock()
	assert.Equal(t, []string{"failed"}, counter.states)
	counter.mu.Unlock()
}

func TestImportSubmitRejections(t *testing.T) {
	svc, _, _ := newImportFixture(t, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, sessionFor(adminUser(), schoolA), ImportRequest{Text: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrAIUnavailable))

	_, err = svc.Submit(ctx, sessionFor(adminUser(), schoolA), ImportRequest{Text: "   "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Submit(ctx, sessionFor(supervisor("s1", models.PermAddTeacher), schoolA), ImportRequest{Text: "x", Apply: true})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestParseTeacherImportsAcceptsWrappedObject(t *testing.T) {
	items, err := ParseTeacherImports(`Result: {"teachers":[{"name":"Ada"}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ada", items[0].Name)

	_, err = ParseTeacherImports("I could not find anyone")
	assert.True(t, errors.Is(err, appErrors.ErrAIUnavailable))
}

func TestPlanTeacherImportMergesDuplicates(t *testing.T) {
	existing := []models.Teacher{{ID: "t1", Name: "Ada"}}
	result := PlanTeacherImport(existing, []TeacherImport{
		{Name: "Ada", Subjects: []string{"Math"}},
		{Name: "ADA", Subjects: []string{"Art"}},
		{Name: "Bo", Grades: []string{"9"}},
		{Name: "bo", Branch: "East"},
	})
	require.Len(t, result.Patches, 1)
	assert.Equal(t, []string{"Math", "Art"}, result.Patches[0].Subjects)
	require.Len(t, result.New, 1)
	assert.Equal(t, "East", result.New[0].Branch)
	assert.Equal(t, []string{"9"}, result.New[0].Grades)
}
