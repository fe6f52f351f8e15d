// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/rollbook/internal/domain/session"
)

// SessionDependencies defines the interface for session lifecycle operations.
type SessionDependencies interface {
	StartSession(ctx context.Context, classID int64) (string, error)
	StopSession(ctx context.Context) (int, error)
	SessionStatus() session.Status
	MarkManual(ctx context.Context, subjectID int64, displayName string) error
}

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type startSessionRequest struct {
	ClassID int64 `json:"class_id"`
}

type startSessionResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"session_id"`
}

// HandleStart handles POST /session/start requests.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	id, err := h.deps.StartSession(r.Context(), req.ClassID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if errors.Is(err, session.ErrAlreadyActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, startSessionResponse{OK: true, SessionID: id})
}

type stopSessionResponse struct {
	OK       bool `json:"ok"`
	Inserted int  `json:"inserted"`
}

// HandleStop handles POST /session/stop requests. The commit is
// all-or-nothing: an enrollment violation aborts the whole batch and is
// surfaced with the offending subject.
func (h *SessionHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	inserted, err := h.deps.StopSession(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stopSessionResponse{OK: true, Inserted: inserted})
}

type manualMarkRequest struct {
	SubjectID   int64  `json:"student_id"`
	DisplayName string `json:"display_name"`
}

// HandleManual handles POST /session/manual requests, injecting an
// operator-entered mark into the active session.
func (h *SessionHandler) HandleManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req manualMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	if err := h.deps.MarkManual(r.Context(), req.SubjectID, req.DisplayName); err != nil {
		if errors.Is(err, session.ErrNotActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// HandleStatus handles GET /session requests with a pull-based snapshot of
// the running session for operator display.
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.SessionStatus())
}
