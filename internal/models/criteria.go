package models

// CustomCriterion is an extra scoring row scoped to (school, evaluation type).
// General criteria apply to every report of that pair; local ones carry ReportID.
type CustomCriterion struct {
	ID             string         `json:"id"`
	School         string         `json:"school,omitempty"`
	EvaluationType EvaluationType `json:"evaluationType"`
	Label          string         `json:"label"`
	IsGeneral      bool           `json:"isGeneral"`
	ReportID       string         `json:"reportId,omitempty"`
}

func (c CustomCriterion) SchoolTag() string { return c.School }
func (c *CustomCriterion) SetSchool(school string) { c.School = school }

// HiddenCriterion suppresses a built-in criterion label for a school and type.
type HiddenCriterion struct {
	School         string         `json:"school"`
	EvaluationType EvaluationType `json:"evaluationType"`
	Label          string         `json:"label"`
}

func (h HiddenCriterion) SchoolTag() string { return h.School }
func (h *HiddenCriterion) SetSchool(school string) { h.School = school }

// SpecialReportTemplate names a reusable set of criterion labels for special reports.
type SpecialReportTemplate struct {
	ID           string   `json:"id"`
	School       string   `json:"school,omitempty"`
	Name         string   `json:"name" validate:"required"`
	Placeholders []string `json:"placeholders" validate:"min=1,dive,required"`
}

func (t SpecialReportTemplate) SchoolTag() string { return t.School }
func (t *SpecialReportTemplate) SetSchool(school string) { t.School = school }
