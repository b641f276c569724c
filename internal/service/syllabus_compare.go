package service

import (
	"strings"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// Progress is the comparator verdict for one observation.
type Progress struct {
	Status        models.ProgressStatus `json:"status"`
	Difference    int                   `json:"difference"`
	ExpectedIndex int                   `json:"expectedIndex"`
	TaughtIndex   int                   `json:"taughtIndex"`
	ExpectedTitle string                `json:"expectedTitle"`
}

// CompareProgress decides whether the taught lesson is ahead of, on track with
// or behind the lesson planned for date. ok is false when no lesson is planned
// on or before date, or the taught lesson is not in the plan. Dates are ISO
// YYYY-MM-DD strings.
func CompareProgress(plan models.SyllabusPlan, taughtLesson, date string) (Progress, bool) {
	expected := -1
	latest := ""
	for i, lesson := range plan.Lessons {
		if lesson.PlannedDate == "" || lesson.PlannedDate > date {
			continue
		}
		if expected == -1 || lesson.PlannedDate >= latest {
			expected = i
			latest = lesson.PlannedDate
		}
	}
	if expected == -1 {
		return Progress{}, false
	}

	taught := matchLesson(plan.Lessons, taughtLesson)
	if taught == -1 {
		return Progress{}, false
	}

	diff := taught - expected
	p := Progress{
		Difference:    diff,
		ExpectedIndex: expected,
		TaughtIndex:   taught,
		ExpectedTitle: plan.Lessons[expected].Title,
	}
	switch {
	case diff == 0:
		p.Status = models.ProgressOnTrack
	case diff > 0:
		p.Status = models.ProgressAhead
	default:
		p.Status = models.ProgressBehind
		p.Difference = -diff
	}
	return p, true
}

// matchLesson prefers an exact title match, then a case-insensitive substring
// match in either direction. Returns -1 when nothing matches.
func matchLesson(lessons []models.PlannedLesson, title string) int {
	title = strings.TrimSpace(title)
	if title == "" {
		return -1
	}
	for i, l := range lessons {
		if strings.TrimSpace(l.Title) == title {
			return i
		}
	}
	needle := strings.ToLower(title)
	for i, l := range lessons {
		candidate := strings.ToLower(strings.TrimSpace(l.Title))
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return i
		}
	}
	return -1
}
