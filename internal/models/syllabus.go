package models

// PlannedLesson is one step of a syllabus plan.
type PlannedLesson struct {
	Title       string `json:"title" validate:"required"`
	PlannedDate string `json:"plannedDate" validate:"required"`
}

// SyllabusPlan is the ordered lesson sequence for (school, subject, grade).
type SyllabusPlan struct {
	ID      string          `json:"id"`
	School  string          `json:"school,omitempty"`
	Subject string          `json:"subject" validate:"required"`
	Grade   string          `json:"grade" validate:"required"`
	Branch  string          `json:"branch,omitempty"`
	Lessons []PlannedLesson `json:"lessons" validate:"dive"`
}

func (p SyllabusPlan) SchoolTag() string { return p.School }
func (p *SyllabusPlan) SetSchool(school string) { p.School = school }

// ProgressStatus is the comparator verdict. Empty means not computable.
type ProgressStatus string

const (
	ProgressOnTrack ProgressStatus = "on_track"
	ProgressAhead   ProgressStatus = "ahead"
	ProgressBehind  ProgressStatus = "behind"
)

// CoverageEntry is the observed progress for one subject/grade/branch.
type CoverageEntry struct {
	Subject          string         `json:"subject" validate:"required"`
	Grade            string         `json:"grade" validate:"required"`
	Branch           string         `json:"branch,omitempty"`
	LastLesson       string         `json:"lastLesson"`
	Status           ProgressStatus `json:"status,omitempty"`
	LessonDifference int            `json:"lessonDifference"`
}

// SyllabusCoverageReport records a teacher's observed progress against plans.
type SyllabusCoverageReport struct {
	Record
	TeacherID string          `json:"teacherId"`
	Date      string          `json:"date"`
	Entries   []CoverageEntry `json:"entries" validate:"dive"`
}
