package dto

// CriterionCell is one teacher's mean for a criterion label. Present is false
// when the label never appeared in the teacher's reports.
type CriterionCell struct {
	Label   string  `json:"label"`
	Mean    float64 `json:"mean"`
	Count   int     `json:"count"`
	Present bool    `json:"present"`
}

// TeacherAggregateRow is one row of the aggregated reports table.
type TeacherAggregateRow struct {
	TeacherID   string          `json:"teacherId"`
	TeacherName string          `json:"teacherName,omitempty"`
	ReportCount int             `json:"reportCount"`
	Criteria    []CriterionCell `json:"criteria"`
	Percentage  float64         `json:"percentage"`
}

// AggregateTable is the per-teacher, per-criterion matrix with footer statistics.
type AggregateTable struct {
	Columns           []string              `json:"columns"`
	Rows              []TeacherAggregateRow `json:"rows"`
	Footer            []CriterionCell       `json:"footer"`
	OverallPercentage float64               `json:"overallPercentage"`
}

// CriterionAnalysis is the mean performance on one criterion across reports.
type CriterionAnalysis struct {
	Label       string  `json:"label"`
	Occurrences int     `json:"occurrences"`
	MeanScore   float64 `json:"meanScore"`
	Percentage  float64 `json:"percentage"`
}

// TeacherPerformance summarises one teacher's report scores.
type TeacherPerformance struct {
	TeacherID   string  `json:"teacherId"`
	TeacherName string  `json:"teacherName,omitempty"`
	ReportCount int     `json:"reportCount"`
	Average     float64 `json:"average"`
	LatestDate  string  `json:"latestDate,omitempty"`
	Band        string  `json:"band"`
}

// PerformanceSummary is the dashboard view over teachers.
type PerformanceSummary struct {
	Teachers       []TeacherPerformance `json:"teachers"`
	BandCounts     map[string]int       `json:"bandCounts"`
	OverallAverage float64              `json:"overallAverage"`
	ReportCount    int                  `json:"reportCount"`
}

// DashboardOverview counts what the session can see.
type DashboardOverview struct {
	School          string             `json:"school"`
	AcademicYear    string             `json:"academicYear"`
	Teachers        int                `json:"teachers"`
	Reports         int                `json:"reports"`
	Tasks           int                `json:"tasks"`
	OpenTasks       int                `json:"openTasks"`
	Meetings        int                `json:"meetings"`
	PeerVisits      int                `json:"peerVisits"`
	CoverageReports int                `json:"coverageReports"`
	Performance     PerformanceSummary `json:"performance"`
}
