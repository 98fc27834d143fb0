package api

import (
	"net/http"

	"swathtrack/pkg/field"
)

// FieldSummary is the list representation of a loaded field boundary.
type FieldSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Polygons int    `json:"polygons"`
}

// FieldsHandler serves the loaded field list.
type FieldsHandler struct {
	detector *field.Detector // nil when no fields are loaded
}

// NewFieldsHandler creates the handler.
func NewFieldsHandler(det *field.Detector) *FieldsHandler {
	return &FieldsHandler{detector: det}
}

func (h *FieldsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.detector == nil {
		writeJSON(w, http.StatusOK, []FieldSummary{})
		return
	}

	fields := h.detector.Fields()
	out := make([]FieldSummary, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldSummary{
			ID:       f.ID,
			Name:     f.Name,
			Polygons: len(f.Polygons),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
