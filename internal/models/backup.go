package models

import "time"

// BackupFile maps persisted keys to their raw serialised values.
type BackupFile map[string]string

// BackupSlice selects what an export contains.
type BackupSlice struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

const (
	SliceFull           = "full"
	SliceTeacher        = "teacher"
	SliceSchool         = "school"
	SliceEvaluationType = "evaluation_type"
)

// HistorySnapshot archives the values replaced by one import.
type HistorySnapshot struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Source    string     `json:"source,omitempty"`
	Data      BackupFile `json:"data"`
}
