package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// ComputeVisible derives what sess may see from the raw collections. It is a
// pure function of its inputs. An absent user or school yields an all-empty set.
func ComputeVisible(c *models.Collections, sess *models.Session) models.VisibleSet {
	out := models.EmptyVisibleSet()
	if c == nil || !sess.Valid() {
		return out
	}
	school := sess.SelectedSchool
	user := sess.User

	out.Teachers = visibleTeachers(c.Teachers, sess)
	teacherIDs := make(map[string]struct{}, len(out.Teachers))
	for _, t := range out.Teachers {
		teacherIDs[t.ID] = struct{}{}
	}
	for _, r := range c.Reports {
		if r.TeacherID == "" || r.School != school {
			continue
		}
		if _, ok := teacherIDs[r.TeacherID]; ok {
			out.Reports = append(out.Reports, r)
		}
	}

	wildcard := user.IsWildcard()
	out.SyllabusCoverageReports = authoredInSchool(c.SyllabusCoverageReports, school, user.ID, wildcard)
	out.Tasks = authoredInSchool(c.Tasks, school, user.ID, wildcard)
	out.Meetings = authoredInSchool(c.Meetings, school, user.ID, wildcard)
	out.PeerVisits = authoredInSchool(c.PeerVisits, school, user.ID, wildcard)
	out.DeliverySheets = authoredInSchool(c.DeliverySheets, school, user.ID, wildcard)
	out.BulkMessages = authoredInSchool(c.BulkMessages, school, user.ID, wildcard)
	out.SupervisoryPlans = authoredInSchool(c.SupervisoryPlans, school, user.ID, wildcard)

	out.CustomCriteria = inSchool(c.CustomCriteria, school)
	out.SpecialReportTemplates = inSchool(c.SpecialReportTemplates, school)
	out.HiddenCriteria = inSchool(c.HiddenCriteria, school)
	out.SyllabusPlans = inSchool(c.SyllabusPlans, school)

	for _, u := range c.Users {
		if u.SchoolName == "" || u.SchoolName == school {
			out.Users = append(out.Users, u)
		}
	}
	return out
}

func visibleTeachers(teachers []models.Teacher, sess *models.Session) []models.Teacher {
	out := []models.Teacher{}
	if !sess.HasPermission(models.PermViewTeachers) {
		return out
	}
	restricted := !sess.User.IsWildcard() && sess.HasPermission(models.PermViewReportsForSpecific)
	managed := make(map[string]struct{}, len(sess.User.ManagedTeacherIDs))
	for _, id := range sess.User.ManagedTeacherIDs {
		managed[id] = struct{}{}
	}
	for _, t := range teachers {
		if t.School != sess.SelectedSchool {
			continue
		}
		if restricted {
			if _, ok := managed[t.ID]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func inSchool[T models.SchoolTagged](items []T, school string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.SchoolTag() == school {
			out = append(out, item)
		}
	}
	return out
}

func authoredInSchool[T models.Authored](items []T, school, userID string, wildcard bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.SchoolTag() != school {
			continue
		}
		if wildcard || item.Author() == userID {
			out = append(out, item)
		}
	}
	return out
}

type scopeObserver interface {
	ObserveScopeRecompute(duration time.Duration, memoHit bool)
}

// maxMemoEntries bounds the per-revision memo table.
const maxMemoEntries = 256

// ScopeEngine memoises ComputeVisible on (revision, user fingerprint, school, year).
// Returned sets are shared between callers and must not be mutated.
type ScopeEngine struct {
	metrics scopeObserver

	mu       sync.Mutex
	revision uint64
	memo     map[string]models.VisibleSet
}

// NewScopeEngine constructs an engine. metrics may be nil.
func NewScopeEngine(metrics scopeObserver) *ScopeEngine {
	return &ScopeEngine{metrics: metrics, memo: make(map[string]models.VisibleSet)}
}

// Visible returns the scoped view for sess over collections at revision.
func (e *ScopeEngine) Visible(c *models.Collections, revision uint64, sess *models.Session) models.VisibleSet {
	if !sess.Valid() {
		return models.EmptyVisibleSet()
	}
	key := fmt.Sprintf("%s#%s#%s", sess.User.Fingerprint(), sess.SelectedSchool, sess.AcademicYear)

	e.mu.Lock()
	if e.revision != revision || len(e.memo) >= maxMemoEntries {
		e.revision = revision
		e.memo = make(map[string]models.VisibleSet)
	}
	if cached, ok := e.memo[key]; ok {
		e.mu.Unlock()
		e.observe(0, true)
		return cached
	}
	e.mu.Unlock()

	start := time.Now()
	result := ComputeVisible(c, sess)
	e.observe(time.Since(start), false)

	e.mu.Lock()
	if e.revision == revision {
		e.memo[key] = result
	}
	e.mu.Unlock()
	return result
}

func (e *ScopeEngine) observe(d time.Duration, hit bool) {
	if e.metrics != nil {
		e.metrics.ObserveScopeRecompute(d, hit)
	}
}
