package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/aquamonitor/internal/concurrency"
	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/feed"
	"github.com/yourorg/aquamonitor/internal/lookup"
	"github.com/yourorg/aquamonitor/internal/security/audit"
	"github.com/yourorg/aquamonitor/internal/security/middleware"
	"github.com/yourorg/aquamonitor/internal/service"
	"github.com/yourorg/aquamonitor/internal/validation"
	"github.com/yourorg/aquamonitor/internal/version"
)

// MeasurementHandler handles the nested measurement endpoints
type MeasurementHandler struct {
	measurementRepo domain.MeasurementRepository
	aquariumRepo    domain.AquariumRepository
	rules           *validation.RuleSet[*domain.Measurement]
	broker          *feed.Broker
	lookups         *lookup.Service
	auditLog        *audit.Logger
	logger          *slog.Logger
}

// NewMeasurementHandler creates a new measurement handler
func NewMeasurementHandler(
	measurementRepo domain.MeasurementRepository,
	aquariumRepo domain.AquariumRepository,
	broker *feed.Broker,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *MeasurementHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &MeasurementHandler{
		measurementRepo: measurementRepo,
		aquariumRepo:    aquariumRepo,
		rules:           validation.Measurements(),
		broker:          broker,
		auditLog:        auditLog,
		logger:          logger,
	}
}

// RequireKnownKinds makes Create and Update reject kinds that do not appear
// in the measurement kind lookup table.
func (h *MeasurementHandler) RequireKnownKinds(lookups *lookup.Service) {
	h.lookups = lookups
}

// checkKind enforces the optional known-kind restriction.
func (h *MeasurementHandler) checkKind(ctx context.Context, kind string) error {
	if h.lookups == nil {
		return nil
	}
	known, err := h.lookups.IsKnownKind(ctx, kind)
	if err != nil {
		return err
	}
	if !known {
		return &service.ValidationError{Failures: []validation.Failure{
			{Field: "kind", Message: fmt.Sprintf("unknown measurement kind %q", kind)},
		}}
	}
	return nil
}

// MeasurementRequest represents a create or update request
type MeasurementRequest struct {
	Kind    string    `json:"kind"`
	Value   float64   `json:"value"`
	Unit    string    `json:"unit"`
	TakenAt time.Time `json:"takenAt"`
}

// MeasurementResponse is the wire shape of a measurement
type MeasurementResponse struct {
	ID         int64   `json:"id"`
	AquariumID int64   `json:"aquariumId"`
	Kind       string  `json:"kind"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	TakenAt    string  `json:"takenAt"`
	Version    string  `json:"version"`
	CreatedAt  string  `json:"createdAt"`
}

func toMeasurementResponse(m *domain.Measurement) MeasurementResponse {
	return MeasurementResponse{
		ID:         m.ID,
		AquariumID: m.AquariumID,
		Kind:       m.Kind,
		Value:      m.Value,
		Unit:       m.Unit,
		TakenAt:    m.TakenAt.Format(time.RFC3339),
		Version:    version.Encode(m.RowVersion),
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

// parent resolves the addressed aquarium and verifies the caller owns it.
func (h *MeasurementHandler) parent(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, 0, false
	}

	aquariumID, err := pathID(r, "aquariumID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return 0, 0, false
	}

	if _, err := h.aquariumRepo.Get(r.Context(), claims.UserID, aquariumID); err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return 0, 0, false
	}
	return claims.UserID, aquariumID, true
}

// List handles GET /api/aquariums/{aquariumID}/measurements
func (h *MeasurementHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	measurements, err := h.measurementRepo.ListForAquarium(r.Context(), userID, aquariumID)
	if err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return
	}

	resp := make([]MeasurementResponse, 0, len(measurements))
	for _, m := range measurements {
		resp = append(resp, toMeasurementResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"measurements": resp})
}

// Create handles POST /api/aquariums/{aquariumID}/measurements
func (h *MeasurementHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	var req MeasurementRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	m := &domain.Measurement{
		UserID:     userID,
		AquariumID: aquariumID,
		Kind:       req.Kind,
		Value:      req.Value,
		Unit:       req.Unit,
		TakenAt:    req.TakenAt,
	}

	if failures := h.rules.Validate(m); len(failures) != 0 {
		writeDomainError(w, h.logger, "measurement", &service.ValidationError{Failures: failures})
		return
	}
	if err := h.checkKind(r.Context(), m.Kind); err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return
	}

	if err := h.measurementRepo.Create(r.Context(), m); err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return
	}

	h.broker.Publish(m)
	h.auditLog.LogAction(r.Context(), userID, "create", "measurement", "", "ok", m.Kind)
	setVersionTag(w, version.Encode(m.RowVersion))
	writeJSON(w, http.StatusCreated, toMeasurementResponse(m))
}

// Get handles GET /api/aquariums/{aquariumID}/measurements/{measurementID}
func (h *MeasurementHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	measurementID, err := pathID(r, "measurementID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	m, err := h.measurementRepo.Get(r.Context(), measurementID)
	if err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return
	}
	if m.AquariumID != aquariumID {
		writeDomainError(w, h.logger, "measurement", fmt.Errorf("measurement belongs to a different aquarium: %w", domain.ErrConflict))
		return
	}

	setVersionTag(w, version.Encode(m.RowVersion))
	writeJSON(w, http.StatusOK, toMeasurementResponse(m))
}

// Update handles PUT /api/aquariums/{aquariumID}/measurements/{measurementID}
func (h *MeasurementHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	measurementID, err := pathID(r, "measurementID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var req MeasurementRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	updated, tag, err := concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.Measurement]{
		Fetch: func(ctx context.Context) (*domain.Measurement, []byte, error) {
			m, err := h.measurementRepo.Get(ctx, measurementID)
			if err != nil {
				return nil, nil, err
			}
			return m, m.RowVersion, nil
		},
		CrossRef: crossRefAquarium[*domain.Measurement](aquariumID, func(m *domain.Measurement) int64 { return m.AquariumID }),
		Apply: func(ctx context.Context, m *domain.Measurement) ([]byte, error) {
			m.Kind = req.Kind
			m.Value = req.Value
			m.Unit = req.Unit
			m.TakenAt = req.TakenAt
			if failures := h.rules.Validate(m); len(failures) != 0 {
				return nil, &service.ValidationError{Failures: failures}
			}
			if err := h.checkKind(ctx, m.Kind); err != nil {
				return nil, err
			}
			if err := h.measurementRepo.Update(ctx, m); err != nil {
				return nil, err
			}
			return m.RowVersion, nil
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return
	}

	h.auditLog.LogAction(r.Context(), userID, "update", "measurement", r.PathValue("measurementID"), "ok", "")
	setVersionTag(w, tag)
	writeJSON(w, http.StatusOK, toMeasurementResponse(updated))
}

// Delete handles DELETE /api/aquariums/{aquariumID}/measurements/{measurementID}
func (h *MeasurementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	measurementID, err := pathID(r, "measurementID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	_, _, err = concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.Measurement]{
		Fetch: func(ctx context.Context) (*domain.Measurement, []byte, error) {
			m, err := h.measurementRepo.Get(ctx, measurementID)
			if err != nil {
				return nil, nil, err
			}
			return m, m.RowVersion, nil
		},
		CrossRef: crossRefAquarium[*domain.Measurement](aquariumID, func(m *domain.Measurement) int64 { return m.AquariumID }),
		Apply: func(ctx context.Context, m *domain.Measurement) ([]byte, error) {
			return nil, h.measurementRepo.Delete(ctx, m.ID)
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "measurement", err)
		return
	}

	h.auditLog.LogAction(r.Context(), userID, "delete", "measurement", r.PathValue("measurementID"), "ok", "")
	w.WriteHeader(http.StatusNoContent)
}

// crossRefAquarium rejects an entity fetched by id that does not hang off
// the aquarium named in the path.
func crossRefAquarium[T any](aquariumID int64, parentOf func(T) int64) func(T) error {
	return func(entity T) error {
		if parentOf(entity) != aquariumID {
			return fmt.Errorf("resource belongs to a different aquarium: %w", domain.ErrConflict)
		}
		return nil
	}
}
