package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/observability/metrics"
	"github.com/yourorg/aquamonitor/internal/security/auth"
	"github.com/yourorg/aquamonitor/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles credential verification, registration and token issuance
type AuthService struct {
	userRepo      domain.UserRepository
	passwordRepo  domain.PasswordRepository
	breachChecker domain.BreachChecker
	tokenManager  *auth.TokenManager
	tokenDuration time.Duration
	userRules     *validation.RuleSet[*domain.User]
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo domain.UserRepository,
	passwordRepo domain.PasswordRepository,
	breachChecker domain.BreachChecker,
	tokenManager *auth.TokenManager,
	tokenDuration time.Duration,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		userRepo:      userRepo,
		passwordRepo:  passwordRepo,
		breachChecker: breachChecker,
		tokenManager:  tokenManager,
		tokenDuration: tokenDuration,
		userRules:     validation.Users(),
		logger:        logger,
	}
}

// ValidationError carries rule violations out of registration so the
// boundary can answer 422 with the full list.
type ValidationError struct {
	Failures []validation.Failure
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d violation(s)", len(e.Failures))
}

// Verify checks a submitted password against the user's current stored
// hash. The hash embeds its own salt and cost parameters and the compare is
// constant time. An unknown user and a wrong password are indistinguishable.
func (s *AuthService) Verify(ctx context.Context, userID int64, password string) bool {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// Login authenticates a username/password pair and issues a bearer token.
// Every failure path returns domain.ErrUnauthorized with no distinguishing
// detail.
func (s *AuthService) Login(ctx context.Context, username, password string) (*auth.SignedToken, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Info("login attempt for unknown username", slog.String("username", username))
		metrics.ObserveLogin("unknown_user")
		return nil, domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed", slog.String("username", username))
		metrics.ObserveLogin("bad_password")
		return nil, domain.ErrUnauthorized
	}

	token, err := s.tokenManager.Issue(user.ID, user.Username, user.Roles, s.tokenDuration)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	// Audit only; never consulted for authorization
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Error("failed to record last login",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	metrics.ObserveLogin("success")
	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return token, nil
}

// Register creates a new user. The candidate password is checked against the
// breach corpus before anything is persisted; a breach-checker failure
// rejects the registration (fail closed). The initial hash is appended to
// the password history in the same flow.
func (s *AuthService) Register(ctx context.Context, user *domain.User, password string) error {
	if password == "" {
		return &ValidationError{Failures: []validation.Failure{{Field: "password", Message: "password is required"}}}
	}
	if failures := s.userRules.Validate(user); len(failures) != 0 {
		return &ValidationError{Failures: failures}
	}

	if err := s.rejectBreachedPassword(ctx, password); err != nil {
		return err
	}

	if existing, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existing != nil {
		return fmt.Errorf("username %q taken: %w", user.Username, domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if len(user.Roles) == 0 {
		user.Roles = []string{"user"}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}

	if err := s.passwordRepo.Append(ctx, user.ID, user.PasswordHash); err != nil {
		return fmt.Errorf("user created but history append failed: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}

// ChangePassword replaces the user's password after verifying the old one.
// The new hash is written to the user row and appended to the history; the
// old rows are never touched.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return &ValidationError{Failures: []validation.Failure{{Field: "newPassword", Message: "newPassword is required"}}}
	}
	if newPassword == oldPassword {
		return &ValidationError{Failures: []validation.Failure{{Field: "newPassword", Message: "new password must differ from the old one"}}}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		s.logger.Info("password change with wrong current password", slog.Int64("user_id", userID))
		return domain.ErrUnauthorized
	}

	if err := s.rejectBreachedPassword(ctx, newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.passwordRepo.Append(ctx, userID, user.PasswordHash); err != nil {
		return fmt.Errorf("password updated but history append failed: %w", err)
	}

	s.logger.Info("user changed password", slog.Int64("user_id", userID))
	return nil
}

// PasswordHistory returns the user's password records, most recent first,
// with derived validity windows.
func (s *AuthService) PasswordHistory(ctx context.Context, userID int64) ([]domain.PasswordRecord, error) {
	return s.passwordRepo.History(ctx, userID)
}

// ErrPasswordBreached marks a candidate password found in the leaked
// credential corpus.
var ErrPasswordBreached = errors.New("password appears in a known breach")

// rejectBreachedPassword suspends the request until the collaborator
// answers. An unavailable collaborator rejects the change.
func (s *AuthService) rejectBreachedPassword(ctx context.Context, password string) error {
	pwned, err := s.breachChecker.IsPasswordPwned(ctx, password)
	if err != nil {
		s.logger.Error("breach check unavailable", slog.String("error", err.Error()))
		metrics.ObserveBreachCheck("error")
		return fmt.Errorf("breach check unavailable: %w", err)
	}
	if pwned {
		metrics.ObserveBreachCheck("pwned")
		return ErrPasswordBreached
	}
	metrics.ObserveBreachCheck("clean")
	return nil
}
