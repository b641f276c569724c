package service

import "github.com/noah-isme/sma-supervision-api/internal/models"

type schoolRetaggable interface {
	SchoolTag() string
	SetSchool(school string)
}

// MigrateLegacySchoolTags attributes every record without a school tag to the
// first configured school and returns how many records were tagged. Users are
// left alone: an untagged user is visible in every school.
func MigrateLegacySchoolTags(c *models.Collections) int {
	school := c.DefaultSchool()
	if school == "" {
		return 0
	}
	return retagAll(c, "", school)
}

// retagAll moves every school-scoped record tagged from onto to.
func retagAll(c *models.Collections, from, to string) int {
	n := 0
	n += retag(c.Teachers, from, to)
	n += retag(c.Reports, from, to)
	n += retag(c.CustomCriteria, from, to)
	n += retag(c.SpecialReportTemplates, from, to)
	n += retag(c.HiddenCriteria, from, to)
	n += retag(c.SyllabusPlans, from, to)
	n += retag(c.SyllabusCoverageReports, from, to)
	n += retag(c.Tasks, from, to)
	n += retag(c.Meetings, from, to)
	n += retag(c.PeerVisits, from, to)
	n += retag(c.DeliverySheets, from, to)
	n += retag(c.BulkMessages, from, to)
	n += retag(c.SupervisoryPlans, from, to)
	return n
}

func retag[T any, P interface {
	*T
	schoolRetaggable
}](items []T, from, to string) int {
	n := 0
	for i := range items {
		item := P(&items[i])
		if item.SchoolTag() == from {
			item.SetSchool(to)
			n++
		}
	}
	return n
}
