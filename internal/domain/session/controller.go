// Package session implements the recording-session lifecycle state machine.
//
// A controller owns at most one session at a time and moves through
// Idle -> Active -> Finalizing -> Idle. Ingestion is accepted only while
// Active; stop synchronously disables ingestion, cancels both periodic
// tasks, and commits the resolver snapshot through the Persister. The
// controller always returns to Idle with cleared buffers, whether the
// commit succeeded or not. Scaling to concurrent classes means one
// controller instance per class.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rollbook/internal/adapters/mq/buffer"
	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/internal/domain/resolver"
	"github.com/okian/rollbook/pkg/logger"
	"github.com/okian/rollbook/pkg/metrics"
)

// State names the controller's lifecycle phase.
type State string

// Lifecycle states.
const (
	StateIdle       State = "idle"
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
)

// Persister commits a finalized session batch. Implementations must be
// atomic: either every subject's record is inserted or none is.
type Persister interface {
	SaveSession(ctx context.Context, classID int64, date string, events []model.DetectionEvent) (int, error)
}

// Status is a read-only snapshot of the controller for operator display.
type Status struct {
	State             State                  `json:"state"`
	SessionID         string                 `json:"session_id,omitempty"`
	ClassID           int64                  `json:"class_id,omitempty"`
	StartedAt         *time.Time             `json:"started_at,omitempty"`
	ElapsedSeconds    int64                  `json:"elapsed_seconds"`
	UniqueSubjects    int                    `json:"unique_subjects"`
	TotalObservations int64                  `json:"total_observations"`
	Recent            []model.DetectionEvent `json:"recent,omitempty"`
}

// Controller is the session state machine. All mutation of session state
// flows through the resolver; nothing is exposed for external mutation.
type Controller struct {
	mu        sync.Mutex
	state     State
	sessionID string
	classID   int64
	startedAt time.Time
	elapsed   int64
	clockStop chan struct{}

	res *resolver.Resolver
	buf *buffer.Buffer

	persister        Persister
	flushInterval    time.Duration
	recentCap        int
	manualConfidence float64

	log logger.Logger
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithFlushInterval sets the throttle drain interval for new sessions.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// WithRecentCap sets the recent-observation log size for new sessions.
func WithRecentCap(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.recentCap = n
		}
	}
}

// WithManualConfidence sets the confidence assigned to manual marks.
func WithManualConfidence(v float64) Option {
	return func(c *Controller) {
		if v > 0 {
			c.manualConfidence = v
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// New constructs an idle Controller.
func New(p Persister, opts ...Option) *Controller {
	c := &Controller{
		state:            StateIdle,
		persister:        p,
		flushInterval:    300 * time.Millisecond,
		recentCap:        30,
		manualConfidence: model.ManualConfidence,
		log:              logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start transitions Idle -> Active for the given class. It fails with
// ErrInvalidSession when no class is chosen and ErrAlreadyActive when a
// session is already running. Every session begins from a clean state.
func (c *Controller) Start(ctx context.Context, classID int64) (string, error) {
	if classID <= 0 {
		return "", ErrInvalidSession
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return "", ErrAlreadyActive
	}

	c.res = resolver.New(resolver.WithRecentCap(c.recentCap))
	res := c.res
	c.buf = buffer.New(func(ctx context.Context, batch []model.DetectionEvent) {
		res.Apply(ctx, batch)
	}, buffer.WithFlushInterval(c.flushInterval))

	c.sessionID = uuid.NewString()
	c.classID = classID
	c.startedAt = time.Now()
	c.elapsed = 0
	c.state = StateActive
	c.clockStop = make(chan struct{})
	go c.runClock(c.clockStop)

	metrics.RecordSessionStarted()
	c.log.Info(ctx, "session started",
		logger.String("sessionID", c.sessionID),
		logger.Int("classID", int(classID)),
	)
	return c.sessionID, nil
}

// runClock advances the elapsed counter once per second. The increment is
// re-checked against the controller state under the lock so a tick racing
// with Stop can never mutate a finalized session.
func (c *Controller) runClock(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state == StateActive && c.clockStop == stop {
				c.elapsed++
			}
			c.mu.Unlock()
		}
	}
}

// Ingest normalizes raw observations and queues them for the next drain.
// Malformed observations are dropped and logged without affecting the rest
// of the batch. Events arriving outside Active are rejected, not buffered.
func (c *Controller) Ingest(ctx context.Context, observations []model.Observation) (int, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return 0, ErrNotActive
	}
	buf := c.buf
	c.mu.Unlock()

	events := make([]model.DetectionEvent, 0, len(observations))
	for _, o := range observations {
		ev, ok := model.Normalize(o, time.Now)
		if !ok {
			metrics.RecordObservationMalformed()
			c.log.Warn(ctx, "dropping malformed observation",
				logger.String("displayName", o.DisplayName),
			)
			continue
		}
		events = append(events, ev)
	}
	if len(events) > 0 {
		buf.Push(ctx, events...)
		metrics.RecordObservationsIngested(len(events))
	}
	return len(events), nil
}

// Manual injects an operator-entered mark as a synthetic max-confidence
// event, so a human override beats any automatic detection of the same
// subject.
func (c *Controller) Manual(ctx context.Context, subjectID int64, displayName string) error {
	if subjectID <= 0 {
		return ErrInvalidSession
	}
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	buf := c.buf
	conf := c.manualConfidence
	c.mu.Unlock()

	buf.Push(ctx, model.ManualEvent(subjectID, displayName, conf, time.Now))
	metrics.RecordObservationsIngested(1)
	return nil
}

// Stop transitions Active -> Finalizing, synchronously cancelling the
// elapsed clock and the pending throttle timer, then commits the current
// best-by-subject snapshot. The controller returns to Idle with cleared
// state regardless of the commit outcome; failures are reported, never
// silently retried.
func (c *Controller) Stop(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return 0, ErrNotActive
	}
	c.state = StateFinalizing
	close(c.clockStop)
	c.buf.Stop()

	sessionID := c.sessionID
	classID := c.classID
	elapsed := c.elapsed
	snapshot := c.res.Snapshot()
	c.mu.Unlock()

	inserted := 0
	var err error
	if len(snapshot) > 0 {
		events := make([]model.DetectionEvent, 0, len(snapshot))
		for _, ev := range snapshot {
			events = append(events, ev)
		}
		date := time.Now().Format("2006-01-02")
		inserted, err = c.persister.SaveSession(ctx, classID, date, events)
	}

	c.mu.Lock()
	c.res = nil
	c.buf = nil
	c.sessionID = ""
	c.classID = 0
	c.elapsed = 0
	c.clockStop = nil
	c.state = StateIdle
	c.mu.Unlock()

	metrics.ObserveSessionDuration(float64(elapsed))
	if err != nil {
		metrics.RecordSessionCommitFailure()
		c.log.Error(ctx, "session commit failed",
			logger.String("sessionID", sessionID),
			logger.Error(err),
		)
		return 0, err
	}
	metrics.RecordSessionCommitted(inserted)
	c.log.Info(ctx, "session committed",
		logger.String("sessionID", sessionID),
		logger.Int("inserted", inserted),
	)
	return inserted, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller for display.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:          c.state,
		SessionID:      c.sessionID,
		ClassID:        c.classID,
		ElapsedSeconds: c.elapsed,
	}
	if c.state != StateIdle {
		startedAt := c.startedAt
		st.StartedAt = &startedAt
	}
	if c.res != nil {
		st.UniqueSubjects = c.res.UniqueCount()
		st.TotalObservations = c.res.TotalObservations()
		st.Recent = c.res.Recent()
	}
	return st
}
