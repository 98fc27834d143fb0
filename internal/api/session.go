package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"swathtrack/pkg/store"
	"swathtrack/pkg/tracker"
)

// SessionHandler exposes session lifecycle operations.
type SessionHandler struct {
	tracker *tracker.Tracker
	store   store.SessionStore
}

// NewSessionHandler creates the handler.
func NewSessionHandler(tr *tracker.Tracker, st store.SessionStore) *SessionHandler {
	return &SessionHandler{tracker: tr, store: st}
}

func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var opts tracker.StartOptions
	if err := decodeJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := h.tracker.Start(r.Context(), opts)
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrAlreadyTracking):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, tracker.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	sess, err := h.tracker.Stop(r.Context())
	if err != nil {
		if errors.Is(err, tracker.ErrNotTracking) {
			writeError(w, http.StatusConflict, err)
			return
		}
		// The session was recorded but the save failed; hand the data
		// back anyway so nothing is lost, and flag the failure.
		slog.Error("Session save failed on stop", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"session": sess,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) HandleRetrySave(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.RetrySave(r.Context()); err != nil {
		if errors.Is(err, tracker.ErrNothingToSave) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCurrent returns the full snapshot including path and swath ring.
func (h *SessionHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = n
	}

	sessions, err := h.store.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
