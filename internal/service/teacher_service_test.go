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

func newTeacherServiceFixture(t *testing.T) (*TeacherService, *StateService) {
	t.Helper()
	state, _ := newLoadedState(t, cascadeFixture())
	return NewTeacherService(state, NewScopeEngine(nil), nil, nil), state
}

func TestTeacherServiceCreateStampsSchool(t *testing.T) {
	svc, state := newTeacherServiceFixture(t)
	sess := sessionFor(adminUser(), schoolB)

	teacher, err := svc.Create(context.Background(), sess, TeacherInput{Name: "  Ada  ", Subjects: []string{"Math", " "}})
	require.NoError(t, err)
	assert.NotEmpty(t, teacher.ID)
	assert.Equal(t, "Ada", teacher.Name)
	assert.Equal(t, schoolB, teacher.School)
	assert.Equal(t, []string{"Math"}, teacher.Subjects)

	c, _ := state.Snapshot()
	assert.Len(t, c.Teachers, 3)
}

func TestTeacherServiceCreateRequiresPermission(t *testing.T) {
	svc, _ := newTeacherServiceFixture(t)
	sess := sessionFor(supervisor("sup", models.PermViewTeachers), schoolA)

	_, err := svc.Create(context.Background(), sess, TeacherInput{Name: "Ada"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestTeacherServiceCreateValidates(t *testing.T) {
	svc, _ := newTeacherServiceFixture(t)
	_, err := svc.Create(context.Background(), sessionFor(adminUser(), schoolA), TeacherInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTeacherServiceUpdateKeepsSchool(t *testing.T) {
	svc, _ := newTeacherServiceFixture(t)
	sess := sessionFor(adminUser(), schoolA)

	updated, err := svc.Update(context.Background(), sess, "t1", TeacherInput{Name: "Renamed", Branch: "Grammar"})
	require.NoError(t, err)
	assert.Equal(t, "t1", updated.ID)
	assert.Equal(t, schoolA, updated.School)
	assert.Equal(t, "Grammar", updated.Branch)

	_, err = svc.Update(context.Background(), sessionFor(adminUser(), schoolB), "t1", TeacherInput{Name: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound), "teachers of other schools are invisible")
}

func TestTeacherServiceDeleteCascades(t *testing.T) {
	svc, state := newTeacherServiceFixture(t)
	result, err := svc.Delete(context.Background(), sessionFor(adminUser(), schoolA), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed[models.KeyTeachers])
	assert.Equal(t, 2, result.Removed[models.KeyReports])
	assert.Equal(t, 1, result.Removed[models.KeySyllabusCoverageReports])

	c, _ := state.Snapshot()
	assert.Len(t, c.Teachers, 1)
	assert.Len(t, c.Reports, 1)
	assert.Equal(t, "t2", c.Reports[0].TeacherID)
}

func TestTeacherServiceApplyPatch(t *testing.T) {
	svc, _ := newTeacherServiceFixture(t)
	sess := sessionFor(adminUser(), schoolA)
	phone := "555-0100"

	merged, err := svc.ApplyPatch(context.Background(), sess, TeacherPatch{TeacherID: "t2", Subjects: []string{"Science"}, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, []string{"Science"}, merged.Subjects)
	assert.Equal(t, phone, merged.Phone)
}

func TestMatchTeacher(t *testing.T) {
	teachers := []models.Teacher{
		{ID: "1", Name: "Sara Ahmed Ali"},
		{ID: "2", Name: "Omar"},
		{ID: "3", Name: "omar  khalid"},
	}
	assert.Equal(t, 2, MatchTeacher(teachers, "  OMAR KHALID "))
	assert.Equal(t, 1, MatchTeacher(teachers, "omar"))
	assert.Equal(t, 0, MatchTeacher(teachers, "Sara Ahmed"))
	assert.Equal(t, 0, MatchTeacher(teachers, "Ms. Sara Ahmed Ali (Math)"))
	assert.Equal(t, -1, MatchTeacher(teachers, "Layla"))
	assert.Equal(t, -1, MatchTeacher(teachers, " "))
}

func TestBuildTeacherPatch(t *testing.T) {
	existing := models.Teacher{ID: "t1", Name: "Sara", Subjects: []string{"Math"}, Phone: "1"}
	patch := BuildTeacherPatch(existing, TeacherImport{
		Name:     "Sara",
		Subjects: []string{"math", "Physics", "Physics"},
		Phone:    "1",
		Branch:   "Algebra",
	})
	assert.Equal(t, "t1", patch.TeacherID)
	assert.Equal(t, []string{"Physics"}, patch.Subjects)
	assert.Nil(t, patch.Phone)
	require.NotNil(t, patch.Branch)
	assert.Equal(t, "Algebra", *patch.Branch)
	assert.False(t, patch.Empty())

	merged := patch.Apply(existing)
	assert.Equal(t, []string{"Math", "Physics"}, merged.Subjects)
	assert.Equal(t, "Algebra", merged.Branch)

	assert.True(t, BuildTeacherPatch(merged, TeacherImport{Subjects: []string{"MATH"}}).Empty())
}
