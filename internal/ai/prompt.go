package ai

import (
	"fmt"
	"strings"
)

const teacherImportInstructions = `Extract every teacher mentioned in the text below.
Reply with a JSON array only. Each element has the fields:
"name" (string, required), "subjects" (array of strings), "grades" (array of strings),
"sections" (array of strings), "branch" (string), "qualification" (string),
"phone" (string), "notes" (string).
Omit fields that the text does not state. Do not invent values.`

// TeacherImportPrompt builds the extraction prompt. Known teacher names are
// listed so the model reuses their spelling.
func TeacherImportPrompt(text string, knownNames []string) string {
	var sb strings.Builder
	sb.WriteString(teacherImportInstructions)
	if len(knownNames) > 0 {
		sb.WriteString("\nExisting teachers (reuse these spellings when they match): ")
		sb.WriteString(strings.Join(knownNames, ", "))
	}
	fmt.Fprintf(&sb, "\n\nText:\n%s\n", strings.TrimSpace(text))
	return sb.String()
}
