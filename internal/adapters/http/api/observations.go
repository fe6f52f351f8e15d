// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/internal/domain/session"
)

// ObservationDependencies defines the interface for detection ingestion.
type ObservationDependencies interface {
	IngestObservations(ctx context.Context, observations []model.Observation) (int, error)
}

// ObservationsHandler handles raw detection batches from the recognition
// collaborator.
type ObservationsHandler struct {
	deps ObservationDependencies
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(deps ObservationDependencies) *ObservationsHandler {
	return &ObservationsHandler{deps: deps}
}

type observationsRequest struct {
	Observations []model.Observation `json:"observations"`
}

type observationsResponse struct {
	OK       bool `json:"ok"`
	Accepted int  `json:"accepted"`
}

// HandlePost handles POST /observations requests. Malformed observations
// inside the batch are dropped, never fatal; batches arriving outside an
// active session are rejected rather than buffered.
func (h *ObservationsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req observationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	if len(req.Observations) == 0 {
		writeError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	accepted, err := h.deps.IngestObservations(r.Context(), req.Observations)
	if err != nil {
		if errors.Is(err, session.ErrNotActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, observationsResponse{OK: true, Accepted: accepted})
}
