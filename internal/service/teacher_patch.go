package service

import (
	"strings"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

// TeacherImport is one teacher record extracted from free text.
type TeacherImport struct {
	Name          string   `json:"name"`
	Subjects      []string `json:"subjects,omitempty"`
	Grades        []string `json:"grades,omitempty"`
	Sections      []string `json:"sections,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	Qualification string   `json:"qualification,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// TeacherPatch is a partial update. Nil fields are left unchanged; list fields
// are merged into the existing lists without duplicates.
type TeacherPatch struct {
	TeacherID     string   `json:"teacherId"`
	Subjects      []string `json:"subjects,omitempty"`
	Grades        []string `json:"grades,omitempty"`
	Sections      []string `json:"sections,omitempty"`
	Branch        *string  `json:"branch,omitempty"`
	Qualification *string  `json:"qualification,omitempty"`
	Phone         *string  `json:"phone,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

// Empty reports whether applying the patch would change nothing.
func (p TeacherPatch) Empty() bool {
	return len(p.Subjects) == 0 && len(p.Grades) == 0 && len(p.Sections) == 0 &&
		p.Branch == nil && p.Qualification == nil && p.Phone == nil && p.Notes == nil
}

// Apply returns t with the patch merged in.
func (p TeacherPatch) Apply(t models.Teacher) models.Teacher {
	t.Subjects = mergeUnique(t.Subjects, p.Subjects)
	t.Grades = mergeUnique(t.Grades, p.Grades)
	t.Sections = mergeUnique(t.Sections, p.Sections)
	if p.Branch != nil {
		t.Branch = *p.Branch
	}
	if p.Qualification != nil {
		t.Qualification = *p.Qualification
	}
	if p.Phone != nil {
		t.Phone = *p.Phone
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// BuildTeacherPatch compares an extracted record with an existing teacher and
// keeps only the values that would add or change something.
func BuildTeacherPatch(existing models.Teacher, imp TeacherImport) TeacherPatch {
	patch := TeacherPatch{
		TeacherID: existing.ID,
		Subjects:  missingValues(existing.Subjects, imp.Subjects),
		Grades:    missingValues(existing.Grades, imp.Grades),
		Sections:  missingValues(existing.Sections, imp.Sections),
	}
	patch.Branch = changedValue(existing.Branch, imp.Branch)
	patch.Qualification = changedValue(existing.Qualification, imp.Qualification)
	patch.Phone = changedValue(existing.Phone, imp.Phone)
	patch.Notes = changedValue(existing.Notes, imp.Notes)
	return patch
}

// MatchTeacher finds the teacher whose name matches name: exact match after
// trimming and case folding first, then substring containment in either direction.
// Returns -1 when nothing matches.
func MatchTeacher(teachers []models.Teacher, name string) int {
	needle := normalizeName(name)
	if needle == "" {
		return -1
	}
	for i, t := range teachers {
		if normalizeName(t.Name) == needle {
			return i
		}
	}
	for i, t := range teachers {
		candidate := normalizeName(t.Name)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return i
		}
	}
	return -1
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func changedValue(current, incoming string) *string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || incoming == current {
		return nil
	}
	return &incoming
}

func missingValues(current, incoming []string) []string {
	seen := make(map[string]struct{}, len(current))
	for _, v := range current {
		seen[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	var out []string
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func mergeUnique(current, incoming []string) []string {
	extra := missingValues(current, incoming)
	if len(extra) == 0 {
		return current
	}
	out := make([]string, 0, len(current)+len(extra))
	out = append(out, current...)
	return append(out, extra...)
}
