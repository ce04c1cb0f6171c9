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

// AquariumHandler handles aquarium CRUD endpoints
type AquariumHandler struct {
	aquariumRepo domain.AquariumRepository
	rules        *validation.RuleSet[*domain.Aquarium]
	auditLog     *audit.Logger
	logger       *slog.Logger
}

// NewAquariumHandler creates a new aquarium handler
func NewAquariumHandler(aquariumRepo domain.AquariumRepository, auditLog *audit.Logger, logger *slog.Logger) *AquariumHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AquariumHandler{
		aquariumRepo: aquariumRepo,
		rules:        validation.Aquariums(),
		auditLog:     auditLog,
		logger:       logger,
	}
}

// AquariumRequest represents a create or update request
type AquariumRequest struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Shape         string `json:"shape"`
	WidthCM       int    `json:"widthCm"`
	HeightCM      int    `json:"heightCm"`
	DepthCM       int    `json:"depthCm"`
	Volume        int    `json:"volume"`
	DimensionUnit string `json:"dimensionUnit"`
	VolumeUnit    string `json:"volumeUnit"`
}

// AquariumResponse is the wire shape of an aquarium
type AquariumResponse struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"userId"`
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Shape         string `json:"shape,omitempty"`
	WidthCM       int    `json:"widthCm,omitempty"`
	HeightCM      int    `json:"heightCm,omitempty"`
	DepthCM       int    `json:"depthCm,omitempty"`
	Volume        int    `json:"volume,omitempty"`
	DimensionUnit string `json:"dimensionUnit,omitempty"`
	VolumeUnit    string `json:"volumeUnit,omitempty"`
	Version       string `json:"version"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func toAquariumResponse(a *domain.Aquarium) AquariumResponse {
	return AquariumResponse{
		ID:            a.ID,
		UserID:        a.UserID,
		Name:          a.Name,
		Type:          a.Type,
		Shape:         a.Shape,
		WidthCM:       a.WidthCM,
		HeightCM:      a.HeightCM,
		DepthCM:       a.DepthCM,
		Volume:        a.Volume,
		DimensionUnit: a.DimensionUnit,
		VolumeUnit:    a.VolumeUnit,
		Version:       version.Encode(a.RowVersion),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.Format(time.RFC3339),
	}
}

func (req *AquariumRequest) apply(a *domain.Aquarium) {
	a.Name = req.Name
	a.Type = req.Type
	a.Shape = req.Shape
	a.WidthCM = req.WidthCM
	a.HeightCM = req.HeightCM
	a.DepthCM = req.DepthCM
	a.Volume = req.Volume
	a.DimensionUnit = req.DimensionUnit
	a.VolumeUnit = req.VolumeUnit
}

// List handles GET /api/aquariums
func (h *AquariumHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	aquariums, err := h.aquariumRepo.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, h.logger, "aquarium", err)
		return
	}

	resp := make([]AquariumResponse, 0, len(aquariums))
	for _, a := range aquariums {
		resp = append(resp, toAquariumResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"aquariums": resp})
}

// Create handles POST /api/aquariums
func (h *AquariumHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req AquariumRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	aquarium := &domain.Aquarium{UserID: claims.UserID}
	req.apply(aquarium)

	if failures := h.rules.Validate(aquarium); len(failures) != 0 {
		writeDomainError(w, h.logger, "aquarium", &service.ValidationError{Failures: failures})
		return
	}

	if err := h.aquariumRepo.Create(r.Context(), aquarium); err != nil {
		writeDomainError(w, h.logger, "aquarium", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "create", "aquarium", "", "ok", aquarium.Name)
	setVersionTag(w, version.Encode(aquarium.RowVersion))
	writeJSON(w, http.StatusCreated, toAquariumResponse(aquarium))
}

// Get handles GET /api/aquariums/{aquariumID}
func (h *AquariumHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	aquariumID, err := pathID(r, "aquariumID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	aquarium, err := h.aquariumRepo.Get(r.Context(), claims.UserID, aquariumID)
	if err != nil {
		writeDomainError(w, h.logger, "aquarium", err)
		return
	}

	setVersionTag(w, version.Encode(aquarium.RowVersion))
	writeJSON(w, http.StatusOK, toAquariumResponse(aquarium))
}

// Update handles PUT /api/aquariums/{aquariumID}
func (h *AquariumHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	aquariumID, err := pathID(r, "aquariumID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var req AquariumRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	updated, tag, err := concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.Aquarium]{
		Fetch: func(ctx context.Context) (*domain.Aquarium, []byte, error) {
			a, err := h.aquariumRepo.Get(ctx, claims.UserID, aquariumID)
			if err != nil {
				return nil, nil, err
			}
			return a, a.RowVersion, nil
		},
		Apply: func(ctx context.Context, a *domain.Aquarium) ([]byte, error) {
			req.apply(a)
			if failures := h.rules.Validate(a); len(failures) != 0 {
				return nil, &service.ValidationError{Failures: failures}
			}
			if err := h.aquariumRepo.Update(ctx, a); err != nil {
				return nil, err
			}
			return a.RowVersion, nil
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "aquarium", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "update", "aquarium", r.PathValue("aquariumID"), "ok", "")
	setVersionTag(w, tag)
	writeJSON(w, http.StatusOK, toAquariumResponse(updated))
}

// Delete handles DELETE /api/aquariums/{aquariumID}
func (h *AquariumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	aquariumID, err := pathID(r, "aquariumID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	_, _, err = concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.Aquarium]{
		Fetch: func(ctx context.Context) (*domain.Aquarium, []byte, error) {
			a, err := h.aquariumRepo.Get(ctx, claims.UserID, aquariumID)
			if err != nil {
				return nil, nil, err
			}
			return a, a.RowVersion, nil
		},
		Apply: func(ctx context.Context, a *domain.Aquarium) ([]byte, error) {
			return nil, h.aquariumRepo.Delete(ctx, a.ID)
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "aquarium", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "delete", "aquarium", r.PathValue("aquariumID"), "ok", "")
	w.WriteHeader(http.StatusNoContent)
}
