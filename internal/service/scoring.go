package service

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// Performance bands, highest first.
const (
	BandExcellent  = "excellent"
	BandVeryGood   = "very_good"
	BandGood       = "good"
	BandAcceptable = "acceptable"
	BandWeak       = "weak"
)

// ScoreOf returns the report percentage in [0, 100]. Unknown variants, missing
// arrays and empty criteria lists score 0. Out-of-range scores are clamped.
func ScoreOf(r models.Report) float64 {
	criteria := r.AllCriteria()
	if len(criteria) == 0 {
		return 0
	}
	sum := 0
	for _, c := range criteria {
		sum += clampScore(c.Score)
	}
	return 100 * float64(sum) / float64(models.MaxCriterionScore*len(criteria))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > models.MaxCriterionScore {
		return models.MaxCriterionScore
	}
	return score
}

// Round1 rounds half-up to one decimal for display.
func Round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// Band classifies a percentage.
func Band(percentage float64) string {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 75:
		return BandVeryGood
	case percentage >= 60:
		return BandGood
	case percentage >= 50:
		return BandAcceptable
	default:
		return BandWeak
	}
}

// CriterionLabels lists labels in first-seen order across reports.
func CriterionLabels(reports []models.Report) []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, r := range reports {
		for _, c := range r.AllCriteria() {
			if _, ok := seen[c.Label]; ok {
				continue
			}
			seen[c.Label] = struct{}{}
			labels = append(labels, c.Label)
		}
	}
	return labels
}

type labelAccumulator struct {
	sum   float64
	count int
}

// AggregateByTeacher builds the teacher x criterion matrix. A cell is the mean
// score over the teacher's reports where the label appears; a teacher's
// percentage only counts labels that appeared at least once. Footer cells use
// the same rule across teachers. Rows keep the first-seen teacher order.
func AggregateByTeacher(reports []models.Report, universe []string) dto.AggregateTable {
	if universe == nil {
		universe = CriterionLabels(reports)
	}

	order := make([]string, 0)
	perTeacher := make(map[string]map[string]*labelAccumulator)
	reportCount := make(map[string]int)
	for _, r := range reports {
		acc, ok := perTeacher[r.TeacherID]
		if !ok {
			acc = make(map[string]*labelAccumulator)
			perTeacher[r.TeacherID] = acc
			order = append(order, r.TeacherID)
		}
		reportCount[r.TeacherID]++
		for _, c := range r.AllCriteria() {
			cell, ok := acc[c.Label]
			if !ok {
				cell = &labelAccumulator{}
				acc[c.Label] = cell
			}
			cell.sum += float64(clampScore(c.Score))
			cell.count++
		}
	}

	table := dto.AggregateTable{
		Columns: append([]string{}, universe...),
		Rows:    make([]dto.TeacherAggregateRow, 0, len(order)),
		Footer:  make([]dto.CriterionCell, 0, len(universe)),
	}
	footer := make(map[string]*labelAccumulator, len(universe))

	for _, teacherID := range order {
		acc := perTeacher[teacherID]
		row := dto.TeacherAggregateRow{
			TeacherID:   teacherID,
			ReportCount: reportCount[teacherID],
			Criteria:    make([]dto.CriterionCell, 0, len(universe)),
		}
		var meanSum float64
		active := 0
		for _, label := range universe {
			cell := dto.CriterionCell{Label: label}
			if a, ok := acc[label]; ok && a.count > 0 {
				cell.Mean = a.sum / float64(a.count)
				cell.Count = a.count
				cell.Present = true
				meanSum += cell.Mean
				active++

				f, ok := footer[label]
				if !ok {
					f = &labelAccumulator{}
					footer[label] = f
				}
				f.sum += cell.Mean
				f.count++
			}
			row.Criteria = append(row.Criteria, cell)
		}
		row.Percentage = percentOfMeans(meanSum, active)
		table.Rows = append(table.Rows, row)
	}

	var footerSum float64
	footerActive := 0
	for _, label := range universe {
		cell := dto.CriterionCell{Label: label}
		if f, ok := footer[label]; ok && f.count > 0 {
			cell.Mean = f.sum / float64(f.count)
			cell.Count = f.count
			cell.Present = true
			footerSum += cell.Mean
			footerActive++
		}
		table.Footer = append(table.Footer, cell)
	}
	table.OverallPercentage = percentOfMeans(footerSum, footerActive)
	return table
}

func percentOfMeans(sum float64, active int) float64 {
	if active == 0 {
		return 0
	}
	return 100 * sum / float64(models.MaxCriterionScore*active)
}

// EvaluationAnalysis returns per-criterion means sorted ascending by
// percentage so the weakest criteria come first. Ties keep first-seen order.
func EvaluationAnalysis(reports []models.Report) []dto.CriterionAnalysis {
	labels := CriterionLabels(reports)
	acc := make(map[string]*labelAccumulator, len(labels))
	for _, r := range reports {
		for _, c := range r.AllCriteria() {
			a, ok := acc[c.Label]
			if !ok {
				a = &labelAccumulator{}
				acc[c.Label] = a
			}
			a.sum += float64(clampScore(c.Score))
			a.count++
		}
	}

	out := make([]dto.CriterionAnalysis, 0, len(labels))
	for _, label := range labels {
		a := acc[label]
		mean := a.sum / float64(a.count)
		out = append(out, dto.CriterionAnalysis{
			Label:       label,
			Occurrences: a.count,
			MeanScore:   mean,
			Percentage:  100 * mean / models.MaxCriterionScore,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage < out[j].Percentage })
	return out
}

// Performance summarises each teacher's reports. names may be nil.
func Performance(reports []models.Report, names map[string]string) dto.PerformanceSummary {
	summary := dto.PerformanceSummary{
		Teachers:   make([]dto.TeacherPerformance, 0),
		BandCounts: map[string]int{BandExcellent: 0, BandVeryGood: 0, BandGood: 0, BandAcceptable: 0, BandWeak: 0},
	}
	index := make(map[string]int)
	totals := make(map[string]float64)
	var overall float64
	for _, r := range reports {
		i, ok := index[r.TeacherID]
		if !ok {
			i = len(summary.Teachers)
			index[r.TeacherID] = i
			summary.Teachers = append(summary.Teachers, dto.TeacherPerformance{
				TeacherID:   r.TeacherID,
				TeacherName: names[r.TeacherID],
			})
		}
		score := ScoreOf(r)
		totals[r.TeacherID] += score
		overall += score
		tp := &summary.Teachers[i]
		tp.ReportCount++
		if r.Date > tp.LatestDate {
			tp.LatestDate = r.Date
		}
	}
	for i := range summary.Teachers {
		tp := &summary.Teachers[i]
		tp.Average = totals[tp.TeacherID] / float64(tp.ReportCount)
		tp.Band = Band(tp.Average)
		summary.BandCounts[tp.Band]++
	}
	summary.ReportCount = len(reports)
	if len(reports) > 0 {
		summary.OverallAverage = overall / float64(len(reports))
	}
	sort.SliceStable(summary.Teachers, func(i, j int) bool {
		return summary.Teachers[i].Average > summary.Teachers[j].Average
	})
	return summary
}

// SortReportsByDateDesc orders reports most recent first, keeping insertion order on ties.
func SortReportsByDateDesc(reports []models.Report) {
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Date > reports[j].Date })
}

// FilterReports applies a time window and attribute filter. Dates compare as
// ISO strings so partial bounds like "2024-01" work as prefixes.
func FilterReports(reports []models.Report, f models.ReportFilter) []models.Report {
	teacherSet := make(map[string]struct{}, len(f.TeacherIDs))
	for _, id := range f.TeacherIDs {
		teacherSet[id] = struct{}{}
	}
	out := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if f.From != "" && r.Date < f.From {
			continue
		}
		if f.To != "" && r.Date > f.To && !strings.HasPrefix(r.Date, f.To) {
			continue
		}
		if f.EvaluationType != "" && r.EvaluationType != f.EvaluationType {
			continue
		}
		if len(teacherSet) > 0 {
			if _, ok := teacherSet[r.TeacherID]; !ok {
				continue
			}
		}
		if f.Subject != "" && r.Subject != f.Subject {
			continue
		}
		if f.Grade != "" && r.Grades != f.Grade {
			continue
		}
		out = append(out, r)
	}
	return out
}

