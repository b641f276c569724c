package models

// Permission is a capability token granted to a user.
type Permission string

// PermissionAll is the wildcard token; holders pass every permission check.
const PermissionAll Permission = "all"

const (
	PermViewTeachers             Permission = "view_teachers"
	PermAddTeacher               Permission = "add_teacher"
	PermEditTeacher              Permission = "edit_teacher"
	PermDeleteTeacher            Permission = "delete_teacher"
	PermViewReportsForSpecific   Permission = "view_reports_for_specific_teachers"
	PermAddGeneralReport         Permission = "add_general_report"
	PermAddClassSessionReport    Permission = "add_class_session_report"
	PermAddSpecialReport         Permission = "add_special_report"
	PermDeleteReports            Permission = "delete_reports"
	PermViewSyllabus             Permission = "view_syllabus"
	PermManageSyllabus           Permission = "manage_syllabus"
	PermViewTasks                Permission = "view_tasks_list"
	PermViewMeetings             Permission = "view_meetings"
	PermViewPeerVisits           Permission = "view_peer_visits"
	PermViewDeliveryRecords      Permission = "view_delivery_records"
	PermViewBulkMessages         Permission = "view_bulk_messages"
	PermViewSupervisoryPlan      Permission = "view_supervisory_plan"
	PermViewAggregatedReports    Permission = "view_aggregated_reports"
	PermViewPerformanceDashboard Permission = "view_performance_dashboard"
	PermViewEvaluationAnalysis   Permission = "view_evaluation_analysis"
	PermManageUsers              Permission = "manage_users"
	PermManageData               Permission = "manage_data"
)

// KnownPermissions lists every token the API understands, wildcard first.
var KnownPermissions = []Permission{
	PermissionAll,
	PermViewTeachers, PermAddTeacher, PermEditTeacher, PermDeleteTeacher,
	PermViewReportsForSpecific, PermAddGeneralReport, PermAddClassSessionReport,
	PermAddSpecialReport, PermDeleteReports,
	PermViewSyllabus, PermManageSyllabus,
	PermViewTasks, PermViewMeetings, PermViewPeerVisits, PermViewDeliveryRecords,
	PermViewBulkMessages, PermViewSupervisoryPlan,
	PermViewAggregatedReports, PermViewPerformanceDashboard, PermViewEvaluationAnalysis,
	PermManageUsers, PermManageData,
}

// IsKnownPermission reports whether p is a recognised token.
func IsKnownPermission(p Permission) bool {
	for _, known := range KnownPermissions {
		if known == p {
			return true
		}
	}
	return false
}
