package api

import (
	"net/http"

	"swathtrack/pkg/model"
	"swathtrack/pkg/tracker"
)

// TelemetryResponse is the lightweight live-status payload: position and
// totals without the full path or swath ring.
type TelemetryResponse struct {
	State          tracker.State     `json:"state"`
	Live           *model.TrackedFix `json:"live,omitempty"`
	SessionID      string            `json:"sessionId,omitempty"`
	FieldID        string            `json:"fieldId,omitempty"`
	PathLength     int               `json:"pathLength"`
	TotalDistanceM float64           `json:"totalDistanceMeters"`
	AcresCovered   float64           `json:"acresCovered"`
}

// TelemetryHandler serves the live tracking snapshot.
type TelemetryHandler struct {
	tracker *tracker.Tracker
}

// NewTelemetryHandler creates the handler.
func NewTelemetryHandler(tr *tracker.Tracker) *TelemetryHandler {
	return &TelemetryHandler{tracker: tr}
}

func (h *TelemetryHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()

	resp := TelemetryResponse{
		State:          snap.State,
		Live:           snap.Live,
		TotalDistanceM: snap.TotalDistanceM,
		AcresCovered:   snap.AcresCovered,
	}
	if snap.Session != nil {
		resp.SessionID = snap.Session.ID
		resp.FieldID = snap.Session.FieldID
		resp.PathLength = len(snap.Session.Path)
	}

	writeJSON(w, http.StatusOK, resp)
}
