// Package repository defines the attendance store interface and errors.
package repository

import (
	"context"

	"github.com/okian/rollbook/internal/domain/model"
)

// Store provides durable access to attendance state. Writes are
// transactional at batch granularity; reads are purely functional with
// respect to their filters.
type Store interface {
	// SaveBatch validates every item against enrollment membership and
	// inserts the whole batch in a single transaction. If any subject is not
	// enrolled in the batch's class, no row is inserted and the error
	// unwraps to ErrNotEnrolled. Returns the number of rows committed.
	SaveBatch(ctx context.Context, batch model.WriteBatch) (int, error)

	// History returns one page of committed records matching the filter,
	// ordered by date desc, time desc, insertion order desc.
	History(ctx context.Context, filter model.HistoryFilter) (model.HistoryPage, error)

	// IsEnrolled reports whether an Enrollment(classID, subjectID) exists.
	IsEnrolled(ctx context.Context, classID, subjectID int64) (bool, error)

	// ListClasses returns all roster targets.
	ListClasses(ctx context.Context) ([]model.Class, error)

	// ListClassStudents returns a class and its enrolled students ordered by
	// name. Returns ErrClassNotFound for an unknown class.
	ListClassStudents(ctx context.Context, classID int64) (model.Class, []model.Student, error)

	// Close releases the underlying database handle.
	Close() error
}
