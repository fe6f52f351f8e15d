// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/rollbook/internal/adapters/repository"
	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/internal/domain/session"
	"github.com/okian/rollbook/pkg/logger"
)

// Service implements the API dependencies for the attendance system. It
// owns one session controller (one Active session at a time; run one
// Service per class for concurrent rosters) and the durable store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	controller *session.Controller

	// Configuration
	dbPath           string
	flushInterval    time.Duration
	recentLogSize    int
	manualConfidence float64
	statusPolicy     model.StatusPolicy
	pageSizeMin      int
	pageSizeMax      int
	pageSizeDefault  int

	// State
	started  bool
	ownStore bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database location.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithStore injects a pre-opened store instead of opening one from DBPath.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFlushInterval sets the throttled buffer drain interval.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithRecentLogSize caps the recent-detections list.
func WithRecentLogSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLogSize = n
		}
	}
}

// WithManualConfidence sets the score assigned to manual marks.
func WithManualConfidence(v float64) Option {
	return func(s *Service) {
		if v > 0 {
			s.manualConfidence = v
		}
	}
}

// WithStatusPolicy sets the late-status handling policy.
func WithStatusPolicy(p model.StatusPolicy) Option {
	return func(s *Service) {
		if p == model.StatusPolicyCollapseLate || p == model.StatusPolicyKeepLate {
			s.statusPolicy = p
		}
	}
}

// WithPageBounds sets history pagination clamp bounds.
func WithPageBounds(minSize, maxSize, defaultSize int) Option {
	return func(s *Service) {
		if minSize > 0 && maxSize >= minSize && defaultSize >= minSize && defaultSize <= maxSize {
			s.pageSizeMin = minSize
			s.pageSizeMax = maxSize
			s.pageSizeDefault = defaultSize
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:           "attendance.db",
		flushInterval:    300 * time.Millisecond,
		recentLogSize:    30,
		manualConfidence: model.ManualConfidence,
		statusPolicy:     model.StatusPolicyCollapseLate,
		pageSizeMin:      10,
		pageSizeMax:      100,
		pageSizeDefault:  20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting attendance service...")

	if s.store == nil {
		store, err := repository.Open(s.dbPath,
			repository.WithPageBounds(s.pageSizeMin, s.pageSizeMax, s.pageSizeDefault),
		)
		if err != nil {
			return fmt.Errorf("open attendance store: %w", err)
		}
		s.store = store
		s.ownStore = true
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
	}

	s.controller = session.New(s,
		session.WithFlushInterval(s.flushInterval),
		session.WithRecentCap(s.recentLogSize),
		session.WithManualConfidence(s.manualConfidence),
		session.WithLogger(s.logger.Named("session")),
	)

	s.started = true
	s.logger.Info(ctx, "attendance service started",
		logger.Int("flushIntervalMs", int(s.flushInterval.Milliseconds())),
		logger.Int("recentLogSize", s.recentLogSize),
	)
	return nil
}

// Stop gracefully shuts down the service. A still-active session is stopped
// first so its snapshot gets one commit attempt before the store closes.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping attendance service...")

	if s.controller != nil && s.controller.State() == session.StateActive {
		if _, err := s.controller.Stop(ctx); err != nil {
			s.logger.Error(ctx, "final session commit failed", logger.Error(err))
		}
	}
	if s.ownStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "attendance service stopped")
}

// SaveSession implements session.Persister: it converts the finalized
// best-by-subject snapshot into one atomic write batch with source=facial.
func (s *Service) SaveSession(ctx context.Context, classID int64, date string, events []model.DetectionEvent) (int, error) {
	items := make([]model.WriteItem, 0, len(events))
	for _, ev := range events {
		t := ev.CapturedAt.Format(time.RFC3339)
		item := model.WriteItem{
			SubjectID: ev.SubjectID,
			Status:    model.StatusPresent,
			Time:      &t,
		}
		if ev.DisplayName != "" {
			name := ev.DisplayName
			item.RecognizedName = &name
		}
		items = append(items, item)
	}
	return s.store.SaveBatch(ctx, model.WriteBatch{
		ClassID: classID,
		Date:    date,
		Items:   items,
		Source:  model.SourceFacial,
	})
}

// sessionController returns the controller, or ErrNotStarted before Start
// has built one.
func (s *Service) sessionController() (*session.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.controller == nil {
		return nil, ErrNotStarted
	}
	return s.controller, nil
}

// StartSession begins a recording session for a class.
func (s *Service) StartSession(ctx context.Context, classID int64) (string, error) {
	c, err := s.sessionController()
	if err != nil {
		return "", err
	}
	return c.Start(ctx, classID)
}

// StopSession finalizes the active session and commits its snapshot.
func (s *Service) StopSession(ctx context.Context) (int, error) {
	c, err := s.sessionController()
	if err != nil {
		return 0, err
	}
	return c.Stop(ctx)
}

// SessionStatus returns a display snapshot of the controller. Before the
// service starts it reads as idle.
func (s *Service) SessionStatus() session.Status {
	c, err := s.sessionController()
	if err != nil {
		return session.Status{State: session.StateIdle}
	}
	return c.Status()
}

// MarkManual injects an operator-entered mark into the active session.
func (s *Service) MarkManual(ctx context.Context, subjectID int64, displayName string) error {
	c, err := s.sessionController()
	if err != nil {
		return err
	}
	return c.Manual(ctx, subjectID, displayName)
}

// IngestObservations normalizes and buffers a batch of raw detections.
func (s *Service) IngestObservations(ctx context.Context, observations []model.Observation) (int, error) {
	c, err := s.sessionController()
	if err != nil {
		return 0, err
	}
	return c.Ingest(ctx, observations)
}

// SaveAttendance commits an operator-assembled batch. Input statuses are
// normalized under the configured late policy before hitting the store.
func (s *Service) SaveAttendance(ctx context.Context, batch model.WriteBatch) (int, error) {
	for i, item := range batch.Items {
		batch.Items[i].Status = model.NormalizeStatus(string(item.Status), s.statusPolicy)
		batch.Items[i].Time = trimToNil(item.Time)
		batch.Items[i].RecognizedName = trimToNil(item.RecognizedName)
	}
	if batch.Source != model.SourceFacial {
		batch.Source = model.SourceManual
	}
	return s.store.SaveBatch(ctx, batch)
}

// AttendanceHistory serves the filtered, paginated read path.
func (s *Service) AttendanceHistory(ctx context.Context, filter model.HistoryFilter) (model.HistoryPage, error) {
	return s.store.History(ctx, filter)
}

// ListClasses returns all roster targets.
func (s *Service) ListClasses(ctx context.Context) ([]model.Class, error) {
	return s.store.ListClasses(ctx)
}

// ClassStudents returns a class and its enrolled students.
func (s *Service) ClassStudents(ctx context.Context, classID int64) (model.Class, []model.Student, error) {
	return s.store.ListClassStudents(ctx, classID)
}

// trimToNil collapses empty or whitespace-only optional fields to NULL.
func trimToNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"flushIntervalMs": s.flushInterval.Milliseconds(),
		"recentLogSize":   s.recentLogSize,
	}
	if s.started && s.controller != nil {
		st := s.controller.Status()
		stats["sessionState"] = string(st.State)
		stats["sessionID"] = st.SessionID
		stats["classID"] = st.ClassID
		stats["elapsedSeconds"] = st.ElapsedSeconds
		stats["uniqueSubjects"] = st.UniqueSubjects
		stats["totalObservations"] = st.TotalObservations
	}
	return stats
}
