// Package model contains domain models passed between layers.
package model

import (
	"time"
)

// Source identifies how an attendance record was produced.
type Source string

// Valid record sources.
const (
	SourceManual Source = "manual"
	SourceFacial Source = "facial"
)

// ManualConfidence is the score assigned to operator-entered marks. It sits
// at the top of the confidence scale so a manual mark always wins over an
// automatic detection with equal or lower confidence.
const ManualConfidence = 1.0

// Observation is the raw shape accepted at the ingestion boundary, either
// from the recognition sensor or from a manual entry form.
type Observation struct {
	SubjectID   int64   `json:"subject_id"`
	DisplayName string  `json:"display_name,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	CapturedAt  string  `json:"captured_at,omitempty"` // RFC3339, optional
}

// DetectionEvent is one canonical identity-match observation. Events are
// immutable once normalized; the resolver folds them into a per-subject best
// record and discards the rest.
type DetectionEvent struct {
	SubjectID   int64     `json:"subject_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Confidence  float64   `json:"confidence"`
	CapturedAt  time.Time `json:"captured_at"`
	Matched     bool      `json:"matched"`
	Source      Source    `json:"source"`
}

// Normalize converts a raw observation into a DetectionEvent. It returns
// false when the observation carries no subject reference; such input is
// dropped rather than allowed to break ingestion. A missing or unparseable
// capture time defaults to now.
func Normalize(o Observation, now func() time.Time) (DetectionEvent, bool) {
	if o.SubjectID <= 0 {
		return DetectionEvent{}, false
	}
	capturedAt := now()
	if o.CapturedAt != "" {
		if ts, err := time.Parse(time.RFC3339, o.CapturedAt); err == nil {
			capturedAt = ts
		}
	}
	return DetectionEvent{
		SubjectID:   o.SubjectID,
		DisplayName: o.DisplayName,
		Confidence:  o.Confidence,
		CapturedAt:  capturedAt,
		Matched:     true,
		Source:      SourceFacial,
	}, true
}

// ManualEvent builds a synthetic DetectionEvent for an operator-entered mark.
func ManualEvent(subjectID int64, displayName string, confidence float64, now func() time.Time) DetectionEvent {
	return DetectionEvent{
		SubjectID:   subjectID,
		DisplayName: displayName,
		Confidence:  confidence,
		CapturedAt:  now(),
		Matched:     true,
		Source:      SourceManual,
	}
}
