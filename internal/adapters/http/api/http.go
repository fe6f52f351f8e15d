// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	ObservationDependencies
	AttendanceDependencies
	RosterDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	sessionHandler      *SessionHandler
	observationsHandler *ObservationsHandler
	attendanceHandler   *AttendanceHandler
	rosterHandler       *RosterHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		sessionHandler:      NewSessionHandler(deps),
		observationsHandler: NewObservationsHandler(deps),
		attendanceHandler:   NewAttendanceHandler(deps),
		rosterHandler:       NewRosterHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/session/start", MetricsMiddleware(s.sessionHandler.HandleStart, "session_start"))
	mux.HandleFunc("/session/stop", MetricsMiddleware(s.sessionHandler.HandleStop, "session_stop"))
	mux.HandleFunc("/session/manual", MetricsMiddleware(s.sessionHandler.HandleManual, "session_manual"))
	mux.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleStatus, "session_status"))
	mux.HandleFunc("/observations", MetricsMiddleware(s.observationsHandler.HandlePost, "observations"))
	mux.HandleFunc("/attendance", MetricsMiddleware(s.attendanceHandler.Handle, "attendance"))
	mux.HandleFunc("/classes", MetricsMiddleware(s.rosterHandler.HandleClasses, "classes"))
	mux.HandleFunc("/class-students", MetricsMiddleware(s.rosterHandler.HandleClassStudents, "class_students"))
}

// errorResponse is the failure envelope shared by all endpoints.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}
