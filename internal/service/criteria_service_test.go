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

func newCriteriaServiceFixture(t *testing.T) (*CriteriaService, *StateService) {
	t.Helper()
	state, _ := newLoadedState(t, &models.Collections{
		Schools: []string{schoolA, schoolB},
		Reports: []models.Report{generalReport("r1", "t1", schoolA, "2024-01-01", 3)},
	})
	return NewCriteriaService(state, NewScopeEngine(nil), nil, nil), state
}

func TestCriteriaServiceGeneralAndLocal(t *testing.T) {
	svc, _ := newCriteriaServiceFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	_, err := svc.AddCustom(ctx, sess, CustomCriterionInput{EvaluationType: models.EvaluationGeneral, Label: "Uses tech", IsGeneral: true})
	require.NoError(t, err)
	_, err = svc.AddCustom(ctx, sess, CustomCriterionInput{EvaluationType: models.EvaluationGeneral, Label: "Local", ReportID: "r1"})
	require.NoError(t, err)
	_, err = svc.AddCustom(ctx, sess, CustomCriterionInput{EvaluationType: models.EvaluationGeneral, Label: "uses TECH", IsGeneral: true})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	_, err = svc.AddCustom(ctx, sess, CustomCriterionInput{EvaluationType: models.EvaluationGeneral, Label: "orphan"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	forReport, err := svc.ListCustom(ctx, sess, models.EvaluationGeneral, "r1")
	require.NoError(t, err)
	assert.Len(t, forReport, 2)

	generalOnly, err := svc.ListCustom(ctx, sess, models.EvaluationGeneral, "")
	require.NoError(t, err)
	assert.Len(t, generalOnly, 1)

	otherSchool, err := svc.ListCustom(ctx, sessionFor(adminUser(), schoolB), models.EvaluationGeneral, "r1")
	require.NoError(t, err)
	assert.Empty(t, otherSchool)
}

func TestCriteriaServiceDeleteKeepsReports(t *testing.T) {
	svc, state := newCriteriaServiceFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	cc, err := svc.AddCustom(ctx, sess, CustomCriterionInput{EvaluationType: models.EvaluationGeneral, Label: "criterion A", IsGeneral: true})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCustom(ctx, sess, cc.ID))

	c, _ := state.Snapshot()
	assert.Empty(t, c.CustomCriteria)
	require.Len(t, c.Reports, 1)
	assert.Equal(t, "criterion A", c.Reports[0].Criteria[0].Label)

	assert.True(t, errors.Is(svc.DeleteCustom(ctx, sess, cc.ID), appErrors.ErrNotFound))
}

func TestCriteriaServiceHidden(t *testing.T) {
	svc, _ := newCriteriaServiceFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)
	input := HiddenCriterionInput{EvaluationType: models.EvaluationClassSession, Label: "Homework"}

	require.NoError(t, svc.SetHidden(ctx, sess, input, true))
	require.NoError(t, svc.SetHidden(ctx, sess, input, true))
	hidden, err := svc.ListHidden(ctx, sess, models.EvaluationClassSession)
	require.NoError(t, err)
	assert.Len(t, hidden, 1)

	require.NoError(t, svc.SetHidden(ctx, sess, input, false))
	hidden, err = svc.ListHidden(ctx, sess, "")
	require.NoError(t, err)
	assert.Empty(t, hidden)
}

func TestCriteriaServiceTemplates(t *testing.T) {
	svc, _ := newCriteriaServiceFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	tpl, err := svc.SaveTemplate(ctx, sess, "", TemplateInput{Name: "Lab", Placeholders: []string{"Safety", "Setup"}})
	require.NoError(t, err)

	updated, err := svc.SaveTemplate(ctx, sess, tpl.ID, TemplateInput{Name: "Lab v2", Placeholders: []string{"Safety"}})
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, updated.ID)

	_, err = svc.SaveTemplate(ctx, sessionFor(adminUser(), schoolB), tpl.ID, TemplateInput{Name: "x", Placeholders: []string{"y"}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	list, err := svc.ListTemplates(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lab v2", list[0].Name)

	require.NoError(t, svc.DeleteTemplate(ctx, sess, tpl.ID))
	list, err = svc.ListTemplates(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, list)
}
