package models

// VisibleSet is the scoped view of every collection for one session.
// Slices are never nil so an empty view serialises as [].
type VisibleSet struct {
	Teachers                []Teacher                `json:"teachers"`
	Reports                 []Report                 `json:"reports"`
	CustomCriteria          []CustomCriterion        `json:"customCriteria"`
	SpecialReportTemplates  []SpecialReportTemplate  `json:"specialReportTemplates"`
	HiddenCriteria          []HiddenCriterion        `json:"hiddenCriteria"`
	SyllabusPlans           []SyllabusPlan           `json:"syllabusPlans"`
	SyllabusCoverageReports []SyllabusCoverageReport `json:"syllabusCoverageReports"`
	Tasks                   []Task                   `json:"tasks"`
	Meetings                []Meeting                `json:"meetings"`
	PeerVisits              []PeerVisit              `json:"peerVisits"`
	DeliverySheets          []DeliverySheet          `json:"deliverySheets"`
	BulkMessages            []BulkMessage            `json:"bulkMessages"`
	SupervisoryPlans        []SupervisoryPlanWrapper `json:"supervisoryPlans"`
	Users                   []User                   `json:"users"`
}

// EmptyVisibleSet returns a set with every slice allocated and empty.
func EmptyVisibleSet() VisibleSet {
	return VisibleSet{
		Teachers:                []Teacher{},
		Reports:                 []Report{},
		CustomCriteria:          []CustomCriterion{},
		SpecialReportTemplates:  []SpecialReportTemplate{},
		HiddenCriteria:          []HiddenCriterion{},
		SyllabusPlans:           []SyllabusPlan{},
		SyllabusCoverageReports: []SyllabusCoverageReport{},
		Tasks:                   []Task{},
		Meetings:                []Meeting{},
		PeerVisits:              []PeerVisit{},
		DeliverySheets:          []DeliverySheet{},
		BulkMessages:            []BulkMessage{},
		SupervisoryPlans:        []SupervisoryPlanWrapper{},
		Users:                   []User{},
	}
}
