// Package resolver reduces a session's raw detection stream to one best
// observation per subject.
package resolver

import (
	"context"
	"sync"

	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/pkg/metrics"
)

// Default resolver configuration constants.
const (
	defaultRecentCap = 30
)

// Resolver maintains the subject -> best DetectionEvent mapping for the
// current session, using confidence as the tie-break. Ties keep the existing
// record so repeated identical detections do not oscillate the stored
// capture time.
type Resolver struct {
	mu        sync.RWMutex
	best      map[int64]model.DetectionEvent
	recent    []model.DetectionEvent
	recentCap int
	total     int64
}

// New creates a Resolver with configuration options.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		best:      make(map[int64]model.DetectionEvent),
		recentCap: defaultRecentCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply folds a drained batch into the per-subject best map. For each event
// the stored record is replaced only when the new confidence strictly
// exceeds it. The total observation counter advances by the batch size on
// every call; the best map and unique count are idempotent under replay.
func (r *Resolver) Apply(ctx context.Context, batch []model.DetectionEvent) {
	if len(batch) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total += int64(len(batch))
	for _, ev := range batch {
		if ev.SubjectID <= 0 {
			continue
		}
		prev, ok := r.best[ev.SubjectID]
		if !ok || ev.Confidence > prev.Confidence {
			r.best[ev.SubjectID] = ev
		}
	}

	// Observational log only: bounded FIFO, never the source of truth for
	// persistence.
	r.recent = append(r.recent, batch...)
	if overflow := len(r.recent) - r.recentCap; overflow > 0 {
		r.recent = r.recent[overflow:]
	}

	metrics.RecordBufferFlush(len(batch))
	metrics.UpdateUniqueSubjects(len(r.best))
}

// Best returns the current best record for a subject.
func (r *Resolver) Best(subjectID int64) (model.DetectionEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.best[subjectID]
	return ev, ok
}

// Snapshot returns a copy of the subject -> best event mapping.
func (r *Resolver) Snapshot() map[int64]model.DetectionEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]model.DetectionEvent, len(r.best))
	for id, ev := range r.best {
		out[id] = ev
	}
	return out
}

// Recent returns a copy of the bounded recent-observation log, oldest first.
func (r *Resolver) Recent() []model.DetectionEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DetectionEvent, len(r.recent))
	copy(out, r.recent)
	return out
}

// UniqueCount returns the number of distinct subjects seen so far.
func (r *Resolver) UniqueCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.best)
}

// TotalObservations returns the cumulative count of folded events,
// duplicates included.
func (r *Resolver) TotalObservations() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Reset clears the best map, the recent log, and all counters.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.best = make(map[int64]model.DetectionEvent)
	r.recent = nil
	r.total = 0
	metrics.UpdateUniqueSubjects(0)
}
