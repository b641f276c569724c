package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

func cascadeFixture() *models.Collections {
	return &models.Collections{
		Teachers: []models.Teacher{{ID: "t1", School: schoolA}, {ID: "t2", School: schoolA}},
		Reports: []models.Report{
			generalReport("r1", "t1", schoolA, "2024-01-01", 4),
			generalReport("r2", "t2", schoolA, "2024-01-02", 4),
			generalReport("r3", "t1", schoolA, "2024-01-03", 4),
		},
		SyllabusCoverageReports: []models.SyllabusCoverageReport{
			{Record: models.Record{ID: "s1", School: schoolA}, TeacherID: "t1"},
			{Record: models.Record{ID: "s2", School: schoolA}, TeacherID: "t2"},
		},
		CustomCriteria: []models.CustomCriterion{
			{ID: "c1", Label: "local to r1", ReportID: "r1"},
			{ID: "c2", Label: "general", IsGeneral: true, ReportID: "r1"},
			{ID: "c3", Label: "local to r2", ReportID: "r2"},
		},
		Tasks:               []models.Task{{Record: models.Record{ID: "k1"}, Title: "unrelated"}},
		BookmarkedReportIDs: []string{"r3", "r2"},
	}
}

func TestDeleteCascadeTeacher(t *testing.T) {
	c := cascadeFixture()
	removed := DeleteCascade(c, models.KeyTeachers, "t1")

	assert.Equal(t, []string{"t1"}, removed[models.KeyTeachers])
	assert.ElementsMatch(t, []string{"r1", "r3"}, removed[models.KeyReports])
	assert.Equal(t, []string{"s1"}, removed[models.KeySyllabusCoverageReports])
	assert.Equal(t, []string{"c1"}, removed[models.KeyCustomCriteria])
	assert.Equal(t, []string{"r3"}, removed[models.KeyBookmarkedReportIDs])

	assert.Len(t, c.Teachers, 1)
	assert.Equal(t, []string{"r2"}, idsOf(c.Reports, func(r models.Report) string { return r.ID }))
	for _, r := range c.Reports {
		assert.NotEqual(t, "t1", r.TeacherID)
	}
	assert.Len(t, c.CustomCriteria, 2, "general criteria survive")
	assert.Len(t, c.Tasks, 1)
	assert.Equal(t, []string{"r2"}, c.BookmarkedReportIDs)
}

func TestDeleteCascadeUndeclaredRelationDoesNotCascade(t *testing.T) {
	c := cascadeFixture()
	removed := DeleteCascade(c, models.KeyCustomCriteria, "c3")

	assert.Equal(t, map[string][]string{models.KeyCustomCriteria: {"c3"}}, removed)
	assert.Len(t, c.Reports, 3)
}

func TestDeleteCascadeUnknownIDs(t *testing.T) {
	c := cascadeFixture()
	assert.Empty(t, DeleteCascade(c, models.KeyTeachers, "missing"))
	assert.Empty(t, DeleteCascade(c, "nope", "t1"))
	assert.Len(t, c.Teachers, 2)
}
