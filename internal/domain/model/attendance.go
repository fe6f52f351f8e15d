package model

import "strings"

// Status is the persisted attendance state for a subject.
type Status string

// Valid attendance statuses. StatusLate only survives persistence when the
// store is configured with StatusPolicyKeepLate.
const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// StatusPolicy decides what happens to a "late" input status.
type StatusPolicy string

// Available status policies.
const (
	// StatusPolicyCollapseLate maps late to present, matching the canonical
	// two-state schema.
	StatusPolicyCollapseLate StatusPolicy = "collapse_late"
	// StatusPolicyKeepLate retains late as a distinct third state.
	StatusPolicyKeepLate StatusPolicy = "keep_late"
)

// NormalizeStatus maps a free-form status string to a persistable Status.
// Anything that is not "absent" or (policy permitting) "late" is treated as
// present.
func NormalizeStatus(raw string, policy StatusPolicy) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusAbsent:
		return StatusAbsent
	case StatusLate:
		if policy == StatusPolicyKeepLate {
			return StatusLate
		}
		return StatusPresent
	default:
		return StatusPresent
	}
}

// WriteItem is one subject's row in a pending attendance batch.
type WriteItem struct {
	SubjectID      int64   `json:"student_id"`
	Status         Status  `json:"status"`
	Time           *string `json:"time"`
	RecognizedName *string `json:"recognized_name"`
}

// WriteBatch is the unit handed to the persistence transaction. The whole
// batch commits or none of it does.
type WriteBatch struct {
	ClassID int64       `json:"class_id"`
	Date    string      `json:"date"` // YYYY-MM-DD
	Items   []WriteItem `json:"items"`
	Source  Source      `json:"source"`
}

// AttendanceRecord is one committed row joined with subject and class
// identity, as returned by history queries.
type AttendanceRecord struct {
	ID             int64   `json:"id"`
	Date           string  `json:"date"`
	Time           *string `json:"time"`
	Status         Status  `json:"status"`
	RecognizedName *string `json:"recognized_name"`
	Source         Source  `json:"source"`
	StudentID      int64   `json:"student_id"`
	StudentName    string  `json:"student_name"`
	RollNo         *string `json:"roll_no"`
	ClassID        int64   `json:"class_id"`
	ClassName      string  `json:"class_name"`
	Section        *string `json:"section"`
}

// HistoryFilter selects committed records. A zero ClassID means all classes.
// Dates are inclusive calendar days in YYYY-MM-DD form; Query is a
// case-insensitive substring match over subject name or roll identifier.
type HistoryFilter struct {
	ClassID   int64
	StartDate string
	EndDate   string
	Query     string
	Page      int
	PageSize  int
}

// HistoryPage is one page of history results plus pagination metadata
// computed from the same filter predicate.
type HistoryPage struct {
	Records    []AttendanceRecord `json:"data"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// Class is a roster target.
type Class struct {
	ID      int64   `json:"id"`
	Name    string  `json:"class_name"`
	Section *string `json:"section"`
	Subject *string `json:"subject"`
}

// Student is a subject as known to the roster collaborator.
type Student struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	RollNo *string `json:"roll_no"`
	Email  *string `json:"email"`
}
