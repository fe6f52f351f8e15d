package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for attendance store errors.
var (
	// ErrNotEnrolled aborts a whole batch when any subject lacks an
	// enrollment for the target class.
	ErrNotEnrolled = errors.New("subject not enrolled")
	// ErrInvalidBatch rejects a malformed write batch before any storage work.
	ErrInvalidBatch = errors.New("invalid attendance batch")
	// ErrClassNotFound is returned for roster lookups of unknown classes.
	ErrClassNotFound = errors.New("class not found")
	// ErrStorage wraps storage-level faults; batches are aborted, never
	// partially applied, and never retried automatically.
	ErrStorage = errors.New("storage failure")
)

// NotEnrolledError identifies the offending subject of a rejected batch.
type NotEnrolledError struct {
	ClassID   int64
	SubjectID int64
}

func (e *NotEnrolledError) Error() string {
	return fmt.Sprintf("student %d is not enrolled in class %d", e.SubjectID, e.ClassID)
}

// Unwrap allows errors.Is(err, ErrNotEnrolled).
func (e *NotEnrolledError) Unwrap() error {
	return ErrNotEnrolled
}
