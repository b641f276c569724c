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

func newActivityState(t *testing.T) *StateService {
	t.Helper()
	state, _ := newLoadedState(t, &models.Collections{Schools: []string{schoolA, schoolB}})
	return state
}

func TestTaskServiceAuthorScoping(t *testing.T) {
	state := newActivityState(t)
	svc := NewTaskService(state, NewScopeEngine(nil), nil, nil)
	ctx := context.Background()

	alice := sessionFor(supervisor("alice", models.PermViewTasks), schoolA)
	bob := sessionFor(supervisor("bob", models.PermViewTasks), schoolA)

	first, err := svc.Create(ctx, alice, models.Task{Title: "Observe grade 9", DueDate: "2024-10-01"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotDone, first.Status)
	assert.Equal(t, "alice", first.AuthorID)
	assert.Equal(t, schoolA, first.School)
	assert.Equal(t, year, first.AcademicYear)

	_, err = svc.Create(ctx, alice, models.Task{Title: "Check plans", DueDate: "2024-11-01"})
	require.NoError(t, err)

	mine, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Check plans", mine[0].Title)

	theirs, err := svc.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	all, err := svc.List(ctx, sessionFor(adminUser(), schoolA))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	elsewhere, err := svc.List(ctx, sessionFor(adminUser(), schoolB))
	require.NoError(t, err)
	assert.Empty(t, elsewhere)

	_, err = svc.Update(ctx, bob, first.ID, models.Task{Title: "hijack"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	updated, err := svc.Update(ctx, alice, first.ID, models.Task{Title: "Observe grade 10", Status: models.StatusDone})
	require.NoError(t, err)
	assert.Equal(t, first.Record, updated.Record)

	_, err = svc.Create(ctx, alice, models.Task{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.List(ctx, sessionFor(supervisor("carol"), schoolA))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(ctx, alice, first.ID))
	c, _ := state.Snapshot()
	assert.Len(t, c.Tasks, 1)
}

func TestDeliverySheetStatusFollowsItems(t *testing.T) {
	svc := NewDeliverySheetService(newActivityState(t), NewScopeEngine(nil), nil, nil)
	sess := sessionFor(adminUser(), schoolA)

	sheet, err := svc.Create(context.Background(), sess, models.DeliverySheet{
		Title: "Textbooks",
		Items: []models.DeliveryItem{{TeacherName: "Amal", Quantity: 3, Delivered: true}, {TeacherName: "Badr", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, sheet.Status)

	sheet.Items[1].Delivered = true
	sheet, err = svc.Update(context.Background(), sess, sheet.ID, *sheet)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, sheet.Status)
}

func TestMeetingServiceOutcomes(t *testing.T) {
	svc := NewMeetingService(newActivityState(t), NewScopeEngine(nil), nil, nil)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	meeting, err := svc.Create(ctx, sess, models.Meeting{
		Subject: "Term kickoff",
		Date:    "2024-09-01",
		Outcomes: []models.MeetingOutcome{
			{Description: "Share timetable"},
			{Description: "Collect plans", CompletionPercentage: 50},
		},
	})
	require.NoError(t, err)
	require.Len(t, meeting.Outcomes, 2)
	assert.NotEmpty(t, meeting.Outcomes[0].ID)
	assert.Equal(t, models.StatusInProgress, meeting.Outcomes[1].Status)
	assert.Equal(t, models.StatusInProgress, meeting.Status)

	meeting, err = svc.UpdateOutcome(ctx, sess, meeting.ID, meeting.Outcomes[0].ID, ProgressUpdate{Status: models.StatusDone})
	require.NoError(t, err)
	assert.Equal(t, 100, meeting.Outcomes[0].CompletionPercentage)

	full := 100
	meeting, err = svc.UpdateOutcome(ctx, sess, meeting.ID, meeting.Outcomes[1].ID, ProgressUpdate{CompletionPercentage: &full})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, meeting.Outcomes[1].Status)
	assert.Equal(t, models.StatusDone, meeting.Status)

	_, err = svc.UpdateOutcome(ctx, sess, meeting.ID, "missing", ProgressUpdate{Status: models.StatusDone})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	over := 120
	_, err = svc.UpdateOutcome(ctx, sess, meeting.ID, meeting.Outcomes[1].ID, ProgressUpdate{CompletionPercentage: &over})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	summary, err := svc.Summary(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionSummary{Total: 2, Done: 2, AverageCompletion: 100}, summary)
}

func TestMeetingOutcomeUpdateFailedSaveKeepsState(t *testing.T) {
	store := &flakyStore{Memory: seedStore(t, &models.Collections{Schools: []string{schoolA}})}
	state := NewStateService(store, nil, nil)
	require.NoError(t, state.Load(context.Background()))
	svc := NewMeetingService(state, NewScopeEngine(nil), nil, nil)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	meeting, err := svc.Create(ctx, sess, models.Meeting{
		Subject:  "Planning",
		Date:     "2024-09-02",
		Outcomes: []models.MeetingOutcome{{Description: "Draft calendar"}},
	})
	require.NoError(t, err)
	// warm the memoised visible set so it shares data with the snapshot
	_, err = svc.List(ctx, sess)
	require.NoError(t, err)

	store.failWrites = true
	_, err = svc.UpdateOutcome(ctx, sess, meeting.ID, meeting.Outcomes[0].ID, ProgressUpdate{Status: models.StatusDone})
	require.Error(t, err)

	c, _ := state.Snapshot()
	require.Len(t, c.Meetings, 1)
	assert.Equal(t, models.StatusNotDone, c.Meetings[0].Outcomes[0].Status)
	assert.Equal(t, 0, c.Meetings[0].Outcomes[0].CompletionPercentage)

	raw, ok, err := store.Get(ctx, models.KeyMeetings)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"status":"not_done"`)

	store.failWrites = false
	updated, err := svc.UpdateOutcome(ctx, sess, meeting.ID, meeting.Outcomes[0].ID, ProgressUpdate{Status: models.StatusDone})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
	c, _ = state.Snapshot()
	assert.Equal(t, models.StatusDone, c.Meetings[0].Outcomes[0].Status)
}

func TestSupervisoryPlanSummary(t *testing.T) {
	svc := NewSupervisoryPlanService(newActivityState(t), NewScopeEngine(nil), nil, nil)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	plan, err := svc.Create(ctx, sess, models.SupervisoryPlanWrapper{
		Title: "Semester 1",
		Entries: []models.PlanEntry{
			{Domain: "Teaching", Objective: "Visit every class"},
			{Domain: "Teaching", Objective: "Review plans", CompletionPercentage: 25},
			{Domain: "Admin", Objective: "Audit records", Status: models.StatusDone},
		},
	})
	require.NoError(t, err)

	_, err = svc.UpdateEntry(ctx, sess, plan.ID, plan.Entries[0].ID, ProgressUpdate{Status: models.StatusNotDone})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, sess, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Done)
	assert.Equal(t, 1, summary.InProgress)
	assert.Equal(t, 1, summary.NotDone)
	assert.InDelta(t, 41.7, summary.AverageCompletion, 0.001)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, models.CompletionSummary{}, Summarize(nil, nil))
}
