package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/observability/metrics"
	"github.com/yourorg/aquamonitor/internal/service"
	"github.com/yourorg/aquamonitor/internal/validation"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationFailureResponse carries the full list of rule violations
type ValidationFailureResponse struct {
	Error    string               `json:"error"`
	Failures []validation.Failure `json:"failures"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeDomainError maps service and repository errors onto HTTP statuses.
// The resource label feeds the precondition failure counter.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, resource string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ValidationFailureResponse{
			Error:    "validation failed",
			Failures: verr.Failures,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrPreconditionFailed):
		metrics.ObservePreconditionFailure(resource)
		writeJSON(w, http.StatusPreconditionFailed, ErrorResponse{Error: "precondition failed: stale version tag"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, service.ErrPasswordBreached):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "password appears in a known breach corpus"})
	default:
		logger.Error("request failed",
			slog.String("resource", resource),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "request failed"})
	}
}

// setVersionTag exposes the entity's current version as the ETag header.
func setVersionTag(w http.ResponseWriter, tag string) {
	if tag != "" {
		w.Header().Set("ETag", tag)
	}
}

// pathID parses a numeric path segment captured by the mux.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("failed to decode request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return false
	}
	return true
}
