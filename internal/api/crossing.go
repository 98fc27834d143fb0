package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"swathtrack/pkg/field"
	"swathtrack/pkg/tracker"
)

// CrossingHandler exposes the two-phase field crossing protocol: detection
// produces a pending token, the operator confirms or rejects it here.
type CrossingHandler struct {
	tracker *tracker.Tracker
}

// NewCrossingHandler creates the handler.
func NewCrossingHandler(tr *tracker.Tracker) *CrossingHandler {
	return &CrossingHandler{tracker: tr}
}

type crossingRequest struct {
	Token string `json:"token"`
}

func (h *CrossingHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending := h.tracker.PendingCrossing()
	if pending == nil {
		writeJSON(w, http.StatusOK, map[string]any{"pending": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (h *CrossingHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req crossingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	closed, err := h.tracker.ConfirmCrossing(r.Context(), req.Token)
	if err != nil {
		status := crossingErrorStatus(err)
		if closed == nil {
			writeError(w, status, err)
			return
		}
		// Split happened but the closed session's save failed; return
		// the data with the failure flagged.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"closedSession": closed,
			"error":         err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"closedSession": closed})
}

func (h *CrossingHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var req crossingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.tracker.RejectCrossing(req.Token); err != nil {
		writeError(w, crossingErrorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func crossingErrorStatus(err error) int {
	switch {
	case errors.Is(err, field.ErrNoPendingCrossing),
		errors.Is(err, tracker.ErrNotTracking),
		errors.Is(err, tracker.ErrNoDetector):
		return http.StatusConflict
	case errors.Is(err, field.ErrTokenMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
