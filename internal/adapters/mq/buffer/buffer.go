// Package buffer decouples the detection producer rate from the resolver
// update rate.
//
// Events accumulate in a pending slice and are drained to the sink as one
// batch on a fixed wall-clock interval. The flush timer is armed lazily,
// once per non-empty buffer, so idle periods cost nothing.
package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/pkg/metrics"
)

// Default buffer configuration constants.
const (
	defaultFlushInterval = 300 * time.Millisecond
)

// Sink receives each drained batch. It is invoked from the timer goroutine,
// never from a Push caller.
type Sink func(ctx context.Context, batch []model.DetectionEvent)

// Buffer accumulates detection events and hands them to the sink in batches.
// Push is safe for concurrent use from any ingestion path; the scheduled
// drain takes ownership of the pending slice by swapping it out, so items
// arriving concurrently with a drain land in the next batch rather than
// being lost.
type Buffer struct {
	mu       sync.Mutex
	pending  []model.DetectionEvent
	timer    *time.Timer
	interval time.Duration
	sink     Sink
	stopped  bool

	// drainMu is held for the whole of a drain, including the sink call.
	// Stop acquires it after setting the stopped flag, so Stop returns only
	// once an in-flight delivery has completed.
	drainMu sync.Mutex
}

// New creates a Buffer draining into sink.
func New(sink Sink, opts ...Option) *Buffer {
	b := &Buffer{
		interval: defaultFlushInterval,
		sink:     sink,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Push queues events for the next drain. It never blocks on the sink. Events
// pushed after Stop are discarded.
func (b *Buffer) Push(ctx context.Context, events ...model.DetectionEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.pending = append(b.pending, events...)
	metrics.UpdatePendingObservations(len(b.pending))
	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.fire)
	}
}

// Len returns the number of events waiting for the next drain.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Stop cancels any pending flush timer, discards queued events, and waits
// out a drain that is already delivering to the sink. After Stop returns the
// sink will not be invoked again: a timer callback that has not yet started
// draining observes the stopped flag and returns without touching the sink.
func (b *Buffer) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil
	metrics.UpdatePendingObservations(0)
	b.mu.Unlock()

	// Block until any in-flight delivery finishes. Stop runs off the hot
	// path, at session finalization, so waiting here is fine.
	b.drainMu.Lock()
	defer b.drainMu.Unlock()
}

// fire drains the pending slice in full and hands it to the sink.
func (b *Buffer) fire() {
	b.drainMu.Lock()
	defer b.drainMu.Unlock()

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = nil
	b.timer = nil
	metrics.UpdatePendingObservations(0)
	b.mu.Unlock()

	if len(batch) > 0 {
		b.sink(context.Background(), batch)
	}
}
