package models

import "strings"

// Persisted state keys. Each collection is one JSON array under its key.
const (
	KeyTeachers                = "teachers"
	KeyReports                 = "reports"
	KeyCustomCriteria          = "customCriteria"
	KeySpecialReportTemplates  = "specialReportTemplates"
	KeySyllabusPlans           = "syllabusPlans"
	KeyTasks                   = "tasks"
	KeyMeetings                = "meetings"
	KeyPeerVisits              = "peerVisits"
	KeyDeliverySheets          = "deliverySheets"
	KeyBulkMessages            = "bulkMessages"
	KeySyllabusCoverageReports = "syllabusCoverageReports"
	KeySupervisoryPlans        = "supervisoryPlans"
	KeySchools                 = "schools"
	KeyHiddenCriteria          = "hiddenCriteria"
	KeyUsers                   = "users"
	KeyTheme                   = "theme"
	KeyBookmarkedReportIDs     = "bookmarkedReportIds"
	KeyHistoryBackups          = "app_history_backups"

	// OptionsKeyPrefix prefixes per-feature dropdown option lists.
	OptionsKeyPrefix = "options:"
)

// CollectionKeys lists the keys loaded into Collections, in load order.
var CollectionKeys = []string{
	KeySchools,
	KeyUsers,
	KeyTeachers,
	KeyReports,
	KeyCustomCriteria,
	KeySpecialReportTemplates,
	KeyHiddenCriteria,
	KeySyllabusPlans,
	KeySyllabusCoverageReports,
	KeyTasks,
	KeyMeetings,
	KeyPeerVisits,
	KeyDeliverySheets,
	KeyBulkMessages,
	KeySupervisoryPlans,
	KeyBookmarkedReportIDs,
}

// IsBackupKey reports whether key belongs in backup files. The history key never does.
func IsBackupKey(key string) bool {
	if key == KeyHistoryBackups {
		return false
	}
	if key == KeyTheme || strings.HasPrefix(key, OptionsKeyPrefix) {
		return true
	}
	for _, k := range CollectionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Collections is the full in-memory workspace.
type Collections struct {
	Schools                 []string
	Users                   []User
	Teachers                []Teacher
	Reports                 []Report
	CustomCriteria          []CustomCriterion
	SpecialReportTemplates  []SpecialReportTemplate
	HiddenCriteria          []HiddenCriterion
	SyllabusPlans           []SyllabusPlan
	SyllabusCoverageReports []SyllabusCoverageReport
	Tasks                   []Task
	Meetings                []Meeting
	PeerVisits              []PeerVisit
	DeliverySheets          []DeliverySheet
	BulkMessages            []BulkMessage
	SupervisoryPlans        []SupervisoryPlanWrapper
	BookmarkedReportIDs     []string
}

// Fields maps each collection key to a pointer to its slice, for generic (de)serialisation.
func (c *Collections) Fields() map[string]any {
	return map[string]any{
		KeySchools:                 &c.Schools,
		KeyUsers:                   &c.Users,
		KeyTeachers:                &c.Teachers,
		KeyReports:                 &c.Reports,
		KeyCustomCriteria:          &c.CustomCriteria,
		KeySpecialReportTemplates:  &c.SpecialReportTemplates,
		KeyHiddenCriteria:          &c.HiddenCriteria,
		KeySyllabusPlans:           &c.SyllabusPlans,
		KeySyllabusCoverageReports: &c.SyllabusCoverageReports,
		KeyTasks:                   &c.Tasks,
		KeyMeetings:                &c.Meetings,
		KeyPeerVisits:              &c.PeerVisits,
		KeyDeliverySheets:          &c.DeliverySheets,
		KeyBulkMessages:            &c.BulkMessages,
		KeySupervisoryPlans:        &c.SupervisoryPlans,
		KeyBookmarkedReportIDs:     &c.BookmarkedReportIDs,
	}
}

// DefaultSchool is the first configured school, used for legacy untagged records.
func (c *Collections) DefaultSchool() string {
	if c == nil || len(c.Schools) == 0 {
		return ""
	}
	return c.Schools[0]
}
