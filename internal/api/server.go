package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"swathtrack/pkg/version"
)

// NewServer creates and configures the HTTP server for the tracking surface.
// metricsHandler and streamH may be nil when those features are disabled.
func NewServer(addr string, tel *TelemetryHandler, sess *SessionHandler, cross *CrossingHandler, fieldsH *FieldsHandler, streamH *StreamHandler, metricsHandler http.Handler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	mux.HandleFunc("GET /api/telemetry", tel.HandleTelemetry)

	mux.HandleFunc("POST /api/session/start", sess.HandleStart)
	mux.HandleFunc("POST /api/session/stop", sess.HandleStop)
	mux.HandleFunc("POST /api/session/retry-save", sess.HandleRetrySave)
	mux.HandleFunc("GET /api/session/current", sess.HandleCurrent)
	mux.HandleFunc("GET /api/sessions", sess.HandleList)

	mux.HandleFunc("GET /api/crossing/pending", cross.HandlePending)
	mux.HandleFunc("POST /api/crossing/confirm", cross.HandleConfirm)
	mux.HandleFunc("POST /api/crossing/reject", cross.HandleReject)

	mux.HandleFunc("GET /api/fields", fieldsH.HandleList)

	if streamH != nil {
		mux.HandleFunc("GET /api/stream", streamH.HandleStream)
	}
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush before tearing the listener down.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
