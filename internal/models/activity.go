package models

// ActivityStatus is the shared three-state progress enum.
type ActivityStatus string

const (
	StatusNotDone    ActivityStatus = "not_done"
	StatusInProgress ActivityStatus = "in_progress"
	StatusDone       ActivityStatus = "done"
)

// Task is a supervisor to-do item.
type Task struct {
	Record
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description,omitempty"`
	DueDate     string         `json:"dueDate,omitempty"`
	Status      ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	Notes       string         `json:"notes,omitempty"`
}

// MeetingOutcome is a follow-up action agreed in a meeting.
type MeetingOutcome struct {
	ID                   string         `json:"id"`
	Description          string         `json:"description"`
	Assignee             string         `json:"assignee,omitempty"`
	Deadline             string         `json:"deadline,omitempty"`
	Status               ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	CompletionPercentage int            `json:"completionPercentage" validate:"min=0,max=100"`
}

// Meeting is a minuted meeting with tracked outcomes.
type Meeting struct {
	Record
	Subject   string           `json:"subject" validate:"required"`
	Date      string           `json:"date"`
	Time      string           `json:"time,omitempty"`
	Attendees []string         `json:"attendees,omitempty"`
	Status    ActivityStatus   `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	Outcomes  []MeetingOutcome `json:"outcomes,omitempty" validate:"dive"`
}

// PeerVisit records one teacher visiting another's class.
type PeerVisit struct {
	Record
	VisitingTeacher string         `json:"visitingTeacher" validate:"required"`
	VisitedTeacher  string         `json:"visitedTeacher" validate:"required"`
	Subject         string         `json:"subject,omitempty"`
	Grade           string         `json:"grade,omitempty"`
	Date            string         `json:"date"`
	Status          ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	Notes           string         `json:"notes,omitempty"`
}

// DeliveryItem is one recipient line of a delivery sheet.
type DeliveryItem struct {
	TeacherName  string `json:"teacherName"`
	Quantity     int    `json:"quantity" validate:"min=0"`
	Delivered    bool   `json:"delivered"`
	DeliveryDate string `json:"deliveryDate,omitempty"`
}

// DeliverySheet tracks hand-over of books or records to teachers.
type DeliverySheet struct {
	Record
	Title  string         `json:"title" validate:"required"`
	Type   string         `json:"type,omitempty"`
	Items  []DeliveryItem `json:"items,omitempty" validate:"dive"`
	Status ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
}

// BulkMessage is a broadcast drafted for a group of teachers.
type BulkMessage struct {
	Record
	Title      string         `json:"title" validate:"required"`
	Content    string         `json:"content"`
	Recipients []string       `json:"recipients,omitempty"`
	Date       string         `json:"date,omitempty"`
	Status     ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
}

// PlanEntry is one objective of a supervisory plan.
type PlanEntry struct {
	ID                   string         `json:"id"`
	Domain               string         `json:"domain"`
	Objective            string         `json:"objective"`
	Indicator            string         `json:"indicator,omitempty"`
	Status               ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	CompletionPercentage int            `json:"completionPercentage" validate:"min=0,max=100"`
}

// SupervisoryPlanWrapper is a term plan made of tracked entries.
type SupervisoryPlanWrapper struct {
	Record
	Title    string         `json:"title" validate:"required"`
	Semester string         `json:"semester,omitempty"`
	Status   ActivityStatus `json:"status" validate:"omitempty,oneof=not_done in_progress done"`
	Entries  []PlanEntry    `json:"entries,omitempty" validate:"dive"`
}

// CompletionSummary counts sub-records per status.
type CompletionSummary struct {
	Total             int     `json:"total"`
	Done              int     `json:"done"`
	InProgress        int     `json:"inProgress"`
	NotDone           int     `json:"notDone"`
	AverageCompletion float64 `json:"averageCompletion"`
}
