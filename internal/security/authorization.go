package security

import (
	"fmt"
	"log/slog"

	"github.com/yourorg/aquamonitor/internal/security/auth"
)

// Role represents a user role
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Permission represents an action permission
type Permission string

const (
	PermManageOwnRecords Permission = "manage_own_records"
	PermDeleteUser       Permission = "delete_user"
	PermViewAuditLog     Permission = "view_audit_log"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageOwnRecords,
		PermDeleteUser,
		PermViewAuditLog,
	},
	RoleUser: {
		PermManageOwnRecords,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ClaimsHavePermission checks every role on the token for the permission
func (as *AuthorizationService) ClaimsHavePermission(claims *auth.Claims, permission Permission) bool {
	if claims == nil {
		return false
	}
	for _, r := range claims.Roles {
		if as.HasPermission(Role(r), permission) {
			return true
		}
	}
	return false
}

// ValidateUserAccess ensures the caller addresses their own subtree.
// Admins may address any user.
func (as *AuthorizationService) ValidateUserAccess(claims *auth.Claims, pathUserID int64) error {
	if claims == nil {
		return fmt.Errorf("access denied: no identity")
	}
	for _, r := range claims.Roles {
		if Role(r) == RoleAdmin {
			return nil
		}
	}
	if claims.UserID != pathUserID {
		as.logger.Warn("user access denied",
			slog.Int64("caller", claims.UserID),
			slog.Int64("requested", pathUserID),
		)
		return fmt.Errorf("access denied: invalid user")
	}
	return nil
}
