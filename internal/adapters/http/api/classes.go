// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/rollbook/internal/adapters/repository"
	"github.com/okian/rollbook/internal/domain/model"
)

// RosterDependencies defines the interface for read-only roster lookups.
type RosterDependencies interface {
	ListClasses(ctx context.Context) ([]model.Class, error)
	ClassStudents(ctx context.Context, classID int64) (model.Class, []model.Student, error)
}

// RosterHandler handles class and enrollment listing requests.
type RosterHandler struct {
	deps RosterDependencies
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(deps RosterDependencies) *RosterHandler {
	return &RosterHandler{deps: deps}
}

// HandleClasses handles GET /classes requests.
func (h *RosterHandler) HandleClasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	classes, err := h.deps.ListClasses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if classes == nil {
		classes = []model.Class{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": classes})
}

type classStudentsData struct {
	Class    model.Class     `json:"class"`
	Students []model.Student `json:"students"`
}

// HandleClassStudents handles GET /class-students?class_id=N requests.
func (h *RosterHandler) HandleClassStudents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	classID, err := strconv.ParseInt(r.URL.Query().Get("class_id"), 10, 64)
	if err != nil || classID <= 0 {
		writeError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	cls, students, err := h.deps.ClassStudents(r.Context(), classID)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"data": classStudentsData{Class: cls, Students: students},
	})
}
