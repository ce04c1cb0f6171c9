package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/aquamonitor/internal/concurrency"
	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/security"
	"github.com/yourorg/aquamonitor/internal/security/audit"
	"github.com/yourorg/aquamonitor/internal/security/middleware"
	"github.com/yourorg/aquamonitor/internal/service"
	"github.com/yourorg/aquamonitor/internal/version"
)

// UserHandler handles user lifecycle endpoints
type UserHandler struct {
	authService *service.AuthService
	userRepo    domain.UserRepository
	authz       *security.AuthorizationService
	auditLog    *audit.Logger
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	authService *service.AuthService,
	userRepo domain.UserRepository,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserHandler{
		authService: authService,
		userRepo:    userRepo,
		authz:       authz,
		auditLog:    auditLog,
		logger:      logger,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

// UpdateUserRequest represents a profile update request
type UpdateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// UserResponse is the wire shape of a user. The stored hash never leaves
// the service.
type UserResponse struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles"`
	LastLogin *string  `json:"lastLogin,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

func toUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
	if u.LastLogin != nil {
		ll := u.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &ll
	}
	return resp
}

// Register handles POST /api/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	user := &domain.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	if err := h.authService.Register(r.Context(), user, req.Password); err != nil {
		writeDomainError(w, h.logger, "user", err)
		return
	}

	h.auditLog.LogAction(r.Context(), user.ID, "register", "user", "", "ok", "")
	setVersionTag(w, version.Encode(user.RowVersion))
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Get handles GET /api/users/{userID}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, "user", err)
		return
	}

	setVersionTag(w, version.Encode(user.RowVersion))
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Update handles PUT /api/users/{userID}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	updated, tag, err := concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.User]{
		Fetch: func(ctx context.Context) (*domain.User, []byte, error) {
			u, err := h.userRepo.GetByID(ctx, userID)
			if err != nil {
				return nil, nil, err
			}
			return u, u.RowVersion, nil
		},
		Apply: func(ctx context.Context, u *domain.User) ([]byte, error) {
			if req.Email != "" {
				u.Email = req.Email
			}
			u.FirstName = req.FirstName
			u.LastName = req.LastName
			if err := h.userRepo.Update(ctx, u); err != nil {
				return nil, err
			}
			return u.RowVersion, nil
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "user", err)
		return
	}

	h.auditLog.LogAction(r.Context(), userID, "update", "user", "", "ok", "")
	setVersionTag(w, tag)
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Delete handles DELETE /api/users/{userID}; admin only
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if !h.authz.ClaimsHavePermission(claims, security.PermDeleteUser) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	userID, err := pathID(r, "userID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	_, _, err = concurrency.Run(r.Context(), r.Header.Get("If-Match"), concurrency.Mutation[*domain.User]{
		Fetch: func(ctx context.Context) (*domain.User, []byte, error) {
			u, err := h.userRepo.GetByID(ctx, userID)
			if err != nil {
				return nil, nil, err
			}
			return u, u.RowVersion, nil
		},
		Apply: func(ctx context.Context, u *domain.User) ([]byte, error) {
			return nil, h.userRepo.Delete(ctx, u.ID)
		},
	})
	if err != nil {
		writeDomainError(w, h.logger, "user", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "delete", "user", r.PathValue("userID"), "ok", "")
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles POST /api/users/{userID}/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "oldPassword and newPassword are required"})
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		h.auditLog.LogPasswordChange(r.Context(), userID, "denied", "")
		writeDomainError(w, h.logger, "user", err)
		return
	}

	h.auditLog.LogPasswordChange(r.Context(), userID, "ok", "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// PasswordRecordResponse exposes history window metadata only; the stored
// hashes stay inside the service.
type PasswordRecordResponse struct {
	CreatedAt string  `json:"createdAt"`
	ExpiredAt *string `json:"expiredAt,omitempty"`
}

// PasswordHistory handles GET /api/users/{userID}/passwords
func (h *UserHandler) PasswordHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	records, err := h.authService.PasswordHistory(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, "user", err)
		return
	}

	resp := make([]PasswordRecordResponse, 0, len(records))
	for _, rec := range records {
		item := PasswordRecordResponse{CreatedAt: rec.CreatedAt.Format(time.RFC3339)}
		if rec.ExpiredAt != nil {
			ea := rec.ExpiredAt.Format(time.RFC3339)
			item.ExpiredAt = &ea
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"passwords": resp})
}

// authorize parses the path user id and checks the caller may address it.
func (h *UserHandler) authorize(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return 0, false
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if err := h.authz.ValidateUserAccess(claims, userID); err != nil {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return 0, false
	}
	return userID, true
}
