package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/aquamonitor/internal/security/audit"
	"github.com/yourorg/aquamonitor/internal/service"
)

// AuthHandler handles the token endpoint
type AuthHandler struct {
	authService *service.AuthService
	auditLog    *audit.Logger
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		auditLog:    auditLog,
		logger:      logger,
	}
}

// TokenRequest represents a credential pair submitted for a token
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Token handles POST /api/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.auditLog.LogLogin(r.Context(), 0, req.Username, "denied")
		writeDomainError(w, h.logger, "token", err)
		return
	}

	h.auditLog.LogLogin(r.Context(), token.UserID, req.Username, "granted")
	writeJSON(w, http.StatusOK, token)
}
