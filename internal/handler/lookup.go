package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/aquamonitor/internal/lookup"
)

// LookupHandler serves the unit and measurement-kind reference lists
type LookupHandler struct {
	lookups *lookup.Service
	logger  *slog.Logger
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(lookups *lookup.Service, logger *slog.Logger) *LookupHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &LookupHandler{
		lookups: lookups,
		logger:  logger,
	}
}

// Units handles GET /api/lookups/units
func (h *LookupHandler) Units(w http.ResponseWriter, r *http.Request) {
	entries, err := h.lookups.Units(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, "lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"units": entries})
}

// MeasurementKinds handles GET /api/lookups/measurementkinds
func (h *LookupHandler) MeasurementKinds(w http.ResponseWriter, r *http.Request) {
	entries, err := h.lookups.MeasurementKinds(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, "lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"measurementKinds": entries})
}
