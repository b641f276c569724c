package models

// Record carries the identity and ownership tags shared by author-scoped entities.
// Tags are stamped from the session on write and only checked at read time.
type Record struct {
	ID           string `json:"id"`
	School       string `json:"school,omitempty"`
	AuthorID     string `json:"authorId,omitempty"`
	AcademicYear string `json:"academicYear,omitempty"`
}

// Meta returns a copy of the record header.
func (r Record) Meta() Record { return r }

// SchoolTag returns the owning school.
func (r Record) SchoolTag() string { return r.School }

// Author returns the author id.
func (r Record) Author() string { return r.AuthorID }

// SetMeta replaces the record header.
func (r *Record) SetMeta(meta Record) { *r = meta }

// SetSchool retags the record.
func (r *Record) SetSchool(school string) { r.School = school }

// SchoolTagged is anything carrying a school tag.
type SchoolTagged interface {
	SchoolTag() string
}

// Authored is a school-tagged item with an author.
type Authored interface {
	SchoolTagged
	Author() string
}
