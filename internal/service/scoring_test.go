package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

func TestScoreOfVariants(t *testing.T) {
	assert.InDelta(t, 75.0, ScoreOf(generalReport("r", "t", schoolA, "2024-01-01", 4, 2)), 1e-9)

	special := generalReport("r", "t", schoolA, "2024-01-01", 1, 1, 1, 1)
	special.EvaluationType = models.EvaluationSpecial
	assert.InDelta(t, 25.0, ScoreOf(special), 1e-9)

	cs := classSessionReport("r", "t", "2024-01-01", []int{4, 4}, []int{0, 0})
	assert.InDelta(t, 50.0, ScoreOf(cs), 1e-9)
}

func TestScoreOfDegradesToZero(t *testing.T) {
	empty := generalReport("r", "t", schoolA, "2024-01-01")
	assert.Zero(t, ScoreOf(empty))

	unknown := generalReport("r", "t", schoolA, "2024-01-01", 4, 4)
	unknown.EvaluationType = "mystery"
	assert.Zero(t, ScoreOf(unknown))

	wrongShape := generalReport("r", "t", schoolA, "2024-01-01", 4, 4)
	wrongShape.EvaluationType = models.EvaluationClassSession
	assert.Zero(t, ScoreOf(wrongShape), "class session without groups")

	assert.Zero(t, ScoreOf(models.Report{}))
}

func TestScoreOfBoundsAndOrderInvariance(t *testing.T) {
	cases := [][]int{{0}, {4}, {0, 4, 2, 3}, {1, 1, 1}, {9, -3}}
	for _, scores := range cases {
		r := generalReport("r", "t", schoolA, "2024-01-01", scores...)
		score := ScoreOf(r)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)

		reversed := append([]models.Criterion(nil), r.Criteria...)
		for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
			reversed[i], reversed[j] = reversed[j], reversed[i]
		}
		r2 := r
		r2.Criteria = reversed
		assert.InDelta(t, score, ScoreOf(r2), 1e-9)
	}
}

func eightCriteriaSumming(total int) []int {
	scores := make([]int, 8)
	for i := range scores {
		switch {
		case total >= 4:
			scores[i] = 4
			total -= 4
		default:
			scores[i] = total
			total = 0
		}
	}
	return scores
}

func TestAggregateScenarioThreeClassSessions(t *testing.T) {
	reports := []models.Report{
		classSessionReport("r1", "T", "2024-10-01", eightCriteriaSumming(28)),
		classSessionReport("r2", "T", "2024-10-08", eightCriteriaSumming(16)),
		classSessionReport("r3", "T", "2024-10-15", eightCriteriaSumming(32)),
	}
	assert.InDelta(t, 87.5, ScoreOf(reports[0]), 1e-9)
	assert.InDelta(t, 50.0, ScoreOf(reports[1]), 1e-9)
	assert.InDelta(t, 100.0, ScoreOf(reports[2]), 1e-9)

	table := AggregateByTeacher(reports, nil)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, 3, row.ReportCount)
	assert.InDelta(t, 79.17, row.Percentage, 0.005)
	assert.Equal(t, 79.2, Round1(row.Percentage))
	assert.InDelta(t, 79.17, table.OverallPercentage, 0.005)
}

func TestAggregateCountsOnlyPresentCriteria(t *testing.T) {
	r1 := models.Report{
		TeacherID:      "t1",
		EvaluationType: models.EvaluationGeneral,
		Criteria:       []models.Criterion{{Label: "Planning", Score: 4}, {Label: "Voice", Score: 2}},
	}
	r2 := models.Report{
		TeacherID:      "t1",
		EvaluationType: models.EvaluationGeneral,
		Criteria:       []models.Criterion{{Label: "Planning", Score: 2}},
	}
	r3 := models.Report{
		TeacherID:      "t2",
		EvaluationType: models.EvaluationGeneral,
		Criteria:       []models.Criterion{{Label: "Voice", Score: 4}},
	}
	table := AggregateByTeacher([]models.Report{r1, r2, r3}, []string{"Planning", "Voice", "Unused"})

	require.Len(t, table.Rows, 2)
	t1 := table.Rows[0]
	assert.InDelta(t, 3.0, t1.Criteria[0].Mean, 1e-9)
	assert.InDelta(t, 2.0, t1.Criteria[1].Mean, 1e-9)
	assert.False(t, t1.Criteria[2].Present)
	assert.InDelta(t, 62.5, t1.Percentage, 1e-9)

	t2 := table.Rows[1]
	assert.False(t, t2.Criteria[0].Present)
	assert.InDelta(t, 100.0, t2.Percentage, 1e-9)

	assert.InDelta(t, 3.0, table.Footer[0].Mean, 1e-9)
	assert.Equal(t, 1, table.Footer[0].Count)
	assert.InDelta(t, 3.0, table.Footer[1].Mean, 1e-9)
	assert.Equal(t, 2, table.Footer[1].Count)
	assert.False(t, table.Footer[2].Present)
	assert.InDelta(t, 75.0, table.OverallPercentage, 1e-9)
}

func TestEvaluationAnalysisWorstFirst(t *testing.T) {
	reports := []models.Report{
		{EvaluationType: models.EvaluationGeneral, Criteria: []models.Criterion{{Label: "Good", Score: 4}, {Label: "Bad", Score: 1}, {Label: "Mid", Score: 2}}},
		{EvaluationType: models.EvaluationGeneral, Criteria: []models.Criterion{{Label: "Good", Score: 4}, {Label: "Bad", Score: 0}}},
	}
	analysis := EvaluationAnalysis(reports)
	require.Len(t, analysis, 3)
	assert.Equal(t, "Bad", analysis[0].Label)
	assert.InDelta(t, 12.5, analysis[0].Percentage, 1e-9)
	assert.Equal(t, "Mid", analysis[1].Label)
	assert.Equal(t, "Good", analysis[2].Label)
	assert.Equal(t, 2, analysis[2].Occurrences)
}

func TestPerformanceBands(t *testing.T) {
	reports := []models.Report{
		generalReport("r1", "t1", schoolA, "2024-01-01", 4, 4),
		generalReport("r2", "t1", schoolA, "2024-02-01", 4, 3),
		generalReport("r3", "t2", schoolA, "2024-01-15", 1, 1),
	}
	summary := Performance(reports, map[string]string{"t1": "One"})
	require.Len(t, summary.Teachers, 2)
	assert.Equal(t, "t1", summary.Teachers[0].TeacherID)
	assert.Equal(t, "One", summary.Teachers[0].TeacherName)
	assert.InDelta(t, 93.75, summary.Teachers[0].Average, 1e-9)
	assert.Equal(t, BandExcellent, summary.Teachers[0].Band)
	assert.Equal(t, "2024-02-01", summary.Teachers[0].LatestDate)
	assert.Equal(t, BandWeak, summary.Teachers[1].Band)
	assert.Equal(t, 1, summary.BandCounts[BandExcellent])
	assert.Equal(t, 1, summary.BandCounts[BandWeak])
	assert.Equal(t, 3, summary.ReportCount)

	assert.Equal(t, BandVeryGood, Band(75))
	assert.Equal(t, BandGood, Band(60))
	assert.Equal(t, BandAcceptable, Band(50))
	assert.Equal(t, BandWeak, Band(49.9))
}

func TestRound1HalfUp(t *testing.T) {
	assert.Equal(t, 87.5, Round1(87.5))
	assert.Equal(t, 66.7, Round1(200.0/3))
	assert.Equal(t, 0.3, Round1(0.25))
	assert.Equal(t, 0.0, Round1(0))
}

func TestSortAndFilterReports(t *testing.T) {
	reports := []models.Report{
		generalReport("a", "t1", schoolA, "2024-01-01", 4),
		generalReport("b", "t2", schoolA, "2024-03-01", 4),
		generalReport("c", "t1", schoolA, "2024-03-01", 4),
		generalReport("d", "t1", schoolA, "2024-02-10", 4),
	}
	SortReportsByDateDesc(reports)
	assert.Equal(t, []string{"b", "c", "d", "a"}, idsOf(reports, func(r models.Report) string { return r.ID }))

	filtered := FilterReports(reports, models.ReportFilter{From: "2024-02-01", To: "2024-02", TeacherIDs: []string{"t1"}})
	assert.Equal(t, []string{"d"}, idsOf(filtered, func(r models.Report) string { return r.ID }))

	none := FilterReports(reports, models.ReportFilter{EvaluationType: models.EvaluationSpecial})
	assert.Empty(t, none)
}
