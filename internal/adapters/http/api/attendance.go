// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/rollbook/internal/adapters/repository"
	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/internal/domain/session"
)

// AttendanceDependencies defines the interface for the persistence write and
// history read paths.
type AttendanceDependencies interface {
	SaveAttendance(ctx context.Context, batch model.WriteBatch) (int, error)
	AttendanceHistory(ctx context.Context, filter model.HistoryFilter) (model.HistoryPage, error)
}

// AttendanceHandler handles attendance write and history requests.
type AttendanceHandler struct {
	deps AttendanceDependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps AttendanceDependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// Handle dispatches /attendance by method: POST writes a batch, GET queries
// history.
func (h *AttendanceHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleWrite(w, r)
	case http.MethodGet:
		h.handleHistory(w, r)
	default:
		http.NotFound(w, r)
	}
}

type writeResponse struct {
	OK       bool `json:"ok"`
	Inserted int  `json:"inserted"`
}

// handleWrite commits a manually assembled batch: the whole batch inserts
// atomically or not at all.
func (h *AttendanceHandler) handleWrite(w http.ResponseWriter, r *http.Request) {
	var batch model.WriteBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	inserted, err := h.deps.SaveAttendance(r.Context(), batch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, writeResponse{OK: true, Inserted: inserted})
}

type historyResponse struct {
	OK         bool                     `json:"ok"`
	Data       []model.AttendanceRecord `json:"data"`
	Pagination paginationMeta           `json:"pagination"`
}

type paginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// handleHistory serves the filtered, paginated read over committed records.
// Query parameters: class_id ("all" or a class id), start_date, end_date
// (inclusive YYYY-MM-DD), student_query (substring over name or roll
// number), page, page_size.
func (h *AttendanceHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter model.HistoryFilter
	if classID := q.Get("class_id"); classID != "" && classID != "all" {
		id, err := strconv.ParseInt(classID, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, ErrBadRequest)
			return
		}
		filter.ClassID = id
	}
	filter.StartDate = q.Get("start_date")
	filter.EndDate = q.Get("end_date")
	filter.Query = q.Get("student_query")
	if page := q.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrBadRequest)
			return
		}
		filter.Page = n
	}
	if size := q.Get("page_size"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrBadRequest)
			return
		}
		filter.PageSize = n
	}

	pageData, err := h.deps.AttendanceHistory(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	records := pageData.Records
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		OK:   true,
		Data: records,
		Pagination: paginationMeta{
			Page:       pageData.Page,
			PageSize:   pageData.PageSize,
			Total:      pageData.Total,
			TotalPages: pageData.TotalPages,
		},
	})
}

// writeStoreError translates domain and store failures into HTTP responses:
// invalid input -> 400, state and enrollment conflicts -> 409, everything
// else -> 500.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, repository.ErrNotEnrolled):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, session.ErrNotActive):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
