package models

// Teacher is an instructor under supervision.
type Teacher struct {
	ID            string   `json:"id"`
	Name          string   `json:"name" validate:"required,max=200"`
	School        string   `json:"school,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	Grades        []string `json:"grades,omitempty"`
	Sections      []string `json:"sections,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	Qualification string   `json:"qualification,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// SchoolTag returns the teacher's school.
func (t Teacher) SchoolTag() string { return t.School }

// SetSchool retags the teacher.
func (t *Teacher) SetSchool(school string) { t.School = school }
