package models

// EvaluationType tags the report variant.
type EvaluationType string

const (
	EvaluationGeneral      EvaluationType = "general"
	EvaluationClassSession EvaluationType = "class_session"
	EvaluationSpecial      EvaluationType = "special"
)

// Valid reports whether t is one of the three variants.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationGeneral, EvaluationClassSession, EvaluationSpecial:
		return true
	}
	return false
}

// ClassSessionSubType selects the class-session template.
type ClassSessionSubType string

const (
	SubTypeBrief           ClassSessionSubType = "brief"
	SubTypeExtended        ClassSessionSubType = "extended"
	SubTypeSubjectSpecific ClassSessionSubType = "subject_specific"
)

// MaxCriterionScore is the top of the 0..4 rubric scale.
const MaxCriterionScore = 4

// Criterion is one scored rubric line.
type Criterion struct {
	ID    string `json:"id"`
	Label string `json:"label" validate:"required"`
	Score int    `json:"score" validate:"min=0,max=4"`
}

// CriterionGroup bundles criteria in class-session reports.
type CriterionGroup struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Criteria []Criterion `json:"criteria" validate:"dive"`
}

// Report is the tagged union of general, class-session and special evaluations.
// General and special reports use Criteria; class-session reports use CriterionGroups.
type Report struct {
	Record
	TeacherID       string              `json:"teacherId"`
	Date            string              `json:"date"`
	EvaluationType  EvaluationType      `json:"evaluationType"`
	Subject         string              `json:"subject,omitempty"`
	Grades          string              `json:"grades,omitempty"`
	Branch          string              `json:"branch,omitempty"`
	Criteria        []Criterion         `json:"criteria,omitempty"`
	CriterionGroups []CriterionGroup    `json:"criterionGroups,omitempty"`
	SubType         ClassSessionSubType `json:"subType,omitempty"`
	TemplateName    string              `json:"templateName,omitempty"`

	Positives           string `json:"positives,omitempty"`
	NotesForImprovement string `json:"notesForImprovement,omitempty"`
	Recommendations     string `json:"recommendations,omitempty"`
	EmployeeComment     string `json:"employeeComment,omitempty"`
}

// AllCriteria returns the report's scored lines regardless of variant.
// Unknown variants yield nil.
func (r Report) AllCriteria() []Criterion {
	switch r.EvaluationType {
	case EvaluationGeneral, EvaluationSpecial:
		return r.Criteria
	case EvaluationClassSession:
		var out []Criterion
		for _, g := range r.CriterionGroups {
			out = append(out, g.Criteria...)
		}
		return out
	}
	return nil
}

// ReportFilter narrows report listings and analytics windows.
type ReportFilter struct {
	From           string         `json:"from,omitempty" form:"from"`
	To             string         `json:"to,omitempty" form:"to"`
	EvaluationType EvaluationType `json:"evaluationType,omitempty" form:"evaluationType"`
	TeacherIDs     []string       `json:"teacherIds,omitempty" form:"teacherId"`
	Subject        string         `json:"subject,omitempty" form:"subject"`
	Grade          string         `json:"grade,omitempty" form:"grade"`
}
