package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/aquamonitor/internal/concurrency"
	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/security/audit"
	"github.com/yourorg/aquamonitor/internal/security/middleware"
	"github.com/yourorg/aquamonitor/internal/service"
	"github.com/yourorg/aquamonitor/internal/validation"
	"github.com/yourorg/aquamonitor/internal/version"
)

// WaterChangeHandler handles the nested water change endpoints
type WaterChangeHandler struct {
	waterChangeRepo domain.WaterChangeRepository
	aquariumRepo    domain.AquariumRepository
	rules           *validation.RuleSet[*domain.WaterChange]
	auditLog        *audit.Logger
	logger          *slog.Logger
}

// NewWaterChangeHandler creates a new water change handler
func NewWaterChangeHandler(
	waterChangeRepo domain.WaterChangeRepository,
	aquariumRepo domain.AquariumRepository,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *WaterChangeHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &WaterChangeHandler{
		waterChangeRepo: waterChangeRepo,
		aquariumRepo:    aquariumRepo,
		rules:           validation.WaterChanges(),
		auditLog:        auditLog,
		logger:          logger,
	}
}

// WaterChangeRequest represents a create or update request
type WaterChangeRequest struct {
	Litres    float64   `json:"litres"`
	ChangedAt time.Time `json:"changedAt"`
}

// WaterChangeResponse is the wire shape of a water change
type WaterChangeResponse struct {
	ID         int64   `json:"id"`
	AquariumID int64   `json:"aquariumId"`
	Litres     float64 `json:"litres"`
	ChangedAt  string  `json:"changedAt"`
	Version    string  `json:"version"`
	CreatedAt  string  `json:"createdAt"`
}

func toWaterChangeResponse(wc *domain.WaterChange) WaterChangeResponse {
	return WaterChangeResponse{
		ID:         wc.ID,
		AquariumID: wc.AquariumID,
		Litres:     wc.Litres,
		ChangedAt:  wc.ChangedAt.Format(time.RFC3339),
		Version:    version.Encode(wc.RowVersion),
		CreatedAt:  wc.CreatedAt.Format(time.RFC3339),
	}
}

func (h *WaterChangeHandler) parent(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
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
		writeDomainError(w, h.logger, "waterchange", err)
		return 0, 0, false
	}
	return claims.UserID, aquariumID, true
}

// List handles GET /api/aquariums/{aquariumID}/waterchanges
func (h *WaterChangeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	changes, err := h.waterChangeRepo.ListForAquarium(r.Context(), userID, aquariumID)
	if err != nil {
		writeDomainError(w, h.logger, "waterchange", err)
		return
	}

	resp := make([]WaterChangeResponse, 0, len(changes))
	for _, wc := range changes {
		resp = append(resp, toWaterChangeResponse(wc))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"waterChanges": resp})
}

// Create handles POST /api/aquariums/{aquariumID}/waterchanges
func (h *WaterChangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	var req WaterChangeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	wc := &domain.WaterChange{
		UserID:     userID,
		AquariumID: aquariumID,
		Litres:     req.Litres,
		ChangedAt:  req.ChangedAt,
	}

	if failures := h.rules.Validate(wc); len(failures) != 0 {
		writeDomainError(w, h.logger, "waterchange", &service.ValidationError{Failures: failures})
		return
	}

	if err := h.waterChangeRepo.Create(r.Context(), wc); err != nil {
		writeDomainError(w, h.logger, "waterchange", err)
		return
	}

	h.auditLog.LogAction(r.Context(), userID, "create", "waterchange", "", "ok", "")
	setVersionTag(w, version.Encode(wc.RowVersion))
	writeJSON(w, http.StatusCreated, toWaterChangeResponse(wc))
}

// Get handles GET /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}
func (h *WaterChangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	waterChangeID, err := pathID(r, "waterChangeID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	wc, err := h.waterChangeRepo.Get(r.Context(), waterChangeID)
	if err != nil {
		writeDomainError(w, h.logger, "waterchange", err)
		return
	}
	if err := crossRefAquarium[*domain.WaterChange](aquariumID, func(wc *domain.WaterChange) int64 { return wc.AquariumID })(wc); err != nil {
		writeDomainError(w, h.logger, "waterchange", err)
		return
	}

	setVersionTag(w, version.Encode(wc.RowVersion))
	writeJSON(w, http.StatusOK, toWaterChangeResponse(wc))
}

// Update handles PUT /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}
func (h *WaterChangeHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	waterChangeID, err := pathID(r, "waterChangeID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var req WaterChangeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	updated, tag, err := concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.WaterChange]{
		Fetch: func(ctx context.Context) (*domain.WaterChange, []byte, error) {
			wc, err := h.waterChangeRepo.Get(ctx, waterChangeID)
			if err != nil {
				return nil, nil, err
			}
			return wc, wc.RowVersion, nil
		},
		CrossRef: crossRefAquarium[*domain.WaterChange](aquariumID, func(wc *domain.WaterChange) int64 { return wc.AquariumID }),
		Apply: func(ctx context.Context, wc *domain.WaterChange) ([]byte, error) {
			wc.Litres = req.Litres
			wc.ChangedAt = req.ChangedAt
			if failures := h.rules.Validate(wc); len(failures) != 0 {
				return nil, &service.ValidationError{Failures: failures}
			}
			if err := h.waterChangeRepo.Update(ctx, wc); err != nil {
				return nil, err
			}
			return wc.RowVersion, nil
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "waterchange", err)
		return
	}

	h.auditLog.LogAction(r.Context(), userID, "update", "waterchange", r.PathValue("waterChangeID"), "ok", "")
	setVersionTag(w, tag)
	writeJSON(w, http.StatusOK, toWaterChangeResponse(updated))
}

// Delete handles DELETE /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}
func (h *WaterChangeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, aquariumID, ok := h.parent(w, r)
	if !ok {
		return
	}

	waterChangeID, err := pathID(r, "waterChangeID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	_, _, err = concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.WaterChange]{
		Fetch: func(ctx context.Context) (*domain.WaterChange, []byte, error) {
			wc, err := h.waterChangeRepo.Get(ctx, waterChangeID)
			if err != nil {
				return nil, nil, err
			}
			return wc, wc.RowVersion, nil
		},
		CrossRef: crossRefAquarium[*domain.WaterChange](aquariumID, func(wc *domain.WaterChange) int64 { return wc.AquariumID }),
		Apply: func(ctx context.Context, wc *domain.WaterChange) ([]byte, error) {
			return nil, h.waterChangeRepo.Delete(ctx, wc.ID)
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "waterchange", err)
		return
	}

	h.auditLog.LogAction(r.Context(), userID, "delete", "waterchange", r.PathValue("waterChangeID"), "ok", "")
	w.WriteHeader(http.StatusNoContent)
}
