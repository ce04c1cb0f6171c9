package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/security/auth"
)

type memUserRepo struct {
	nextID     int64
	byID       map[int64]*domain.User
	byUsername map[string]*domain.User
	lastLogin  map[int64]time.Time
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		nextID:     1,
		byID:       map[int64]*domain.User{},
		byUsername: map[string]*domain.User{},
		lastLogin:  map[int64]time.Time{},
	}
}

func (m *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	m.byUsername[u.Username] = u
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) Update(ctx context.Context, u *domain.User) error {
	if _, ok := m.byID[u.ID]; !ok {
		return domain.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	m.byID[u.ID] = u
	m.byUsername[u.Username] = u
	return nil
}

func (m *memUserRepo) Delete(ctx context.Context, id int64) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byUsername, u.Username)
	delete(m.byID, id)
	return nil
}

func (m *memUserRepo) UpdateLastLogin(ctx context.Context, id int64) error {
	m.lastLogin[id] = time.Now()
	return nil
}

type memPasswordRepo struct {
	records []domain.PasswordRecord
	fail    bool
}

func (m *memPasswordRepo) Append(ctx context.Context, userID int64, hashAndSalt string) error {
	if m.fail {
		return errors.New("store unavailable")
	}
	m.records = append(m.records, domain.PasswordRecord{
		UserID:      userID,
		HashAndSalt: hashAndSalt,
		CreatedAt:   time.Now().Add(time.Duration(len(m.records)) * time.Millisecond),
	})
	return nil
}

func (m *memPasswordRepo) History(ctx context.Context, userID int64) ([]domain.PasswordRecord, error) {
	var out []domain.PasswordRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return domain.DeriveExpiry(out), nil
}

type fakeBreachChecker struct {
	pwned map[string]bool
	err   error
	calls int
}

func (f *fakeBreachChecker) IsPasswordPwned(ctx context.Context, plaintext string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.pwned[plaintext], nil
}

func newTestService(users *memUserRepo, passwords *memPasswordRepo, breach *fakeBreachChecker) *AuthService {
	tm := auth.NewTokenManager("test-secret", "aquamonitor")
	return NewAuthService(users, passwords, breach, tm, 15*time.Minute, nil)
}

func register(t *testing.T, s *AuthService, username, password string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com"}
	if err := s.Register(context.Background(), u, password); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	users := newMemUserRepo()
	s := newTestService(users, &memPasswordRepo{}, &fakeBreachChecker{})

	u := register(t, s, "alice", "Password123")

	dup := &domain.User{Username: "alice", Email: "other@example.com"}
	if err := s.Register(context.Background(), dup, "Password123"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	token, err := s.Login(context.Background(), "alice", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token.Token == "" {
		t.Fatal("expected a signed token on login")
	}
	want := time.Now().Add(15 * time.Minute)
	if token.ExpiresAt.Before(want.Add(-2*time.Second)) || token.ExpiresAt.After(want.Add(2*time.Second)) {
		t.Errorf("ExpiresAt = %v, want about %v", token.ExpiresAt, want)
	}
	if _, ok := users.lastLogin[u.ID]; !ok {
		t.Error("expected last login to be recorded")
	}

	// Wrong password and unknown user come back as the same error.
	if _, err := s.Login(context.Background(), "alice", "Wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.Login(context.Background(), "nobody", "Password123"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	s := newTestService(newMemUserRepo(), &memPasswordRepo{}, &fakeBreachChecker{})
	u := register(t, s, "ident7", "correct-horse")

	if !s.Verify(context.Background(), u.ID, "correct-horse") {
		t.Error("Verify with the right password should be true")
	}
	if s.Verify(context.Background(), u.ID, "wrong") {
		t.Error("Verify with the wrong password should be false")
	}
	if s.Verify(context.Background(), 999, "correct-horse") {
		t.Error("Verify for an unknown identity should be false")
	}
}

func TestRegisterRejectsBreachedPassword(t *testing.T) {
	users := newMemUserRepo()
	passwords := &memPasswordRepo{}
	breach := &fakeBreachChecker{pwned: map[string]bool{"hunter2": true}}
	s := newTestService(users, passwords, breach)

	u := &domain.User{Username: "bob", Email: "bob@example.com"}
	if err := s.Register(context.Background(), u, "hunter2"); !errors.Is(err, ErrPasswordBreached) {
		t.Fatalf("expected ErrPasswordBreached, got %v", err)
	}
	if len(users.byID) != 0 {
		t.Error("breached registration must not create a user")
	}
	if len(passwords.records) != 0 {
		t.Error("breached registration must not append history")
	}
}

func TestRegisterFailsClosedOnBreachCheckerOutage(t *testing.T) {
	users := newMemUserRepo()
	breach := &fakeBreachChecker{err: errors.New("upstream down")}
	s := newTestService(users, &memPasswordRepo{}, breach)

	u := &domain.User{Username: "carol", Email: "carol@example.com"}
	if err := s.Register(context.Background(), u, "FineP4ssword"); err == nil {
		t.Fatal("expected failure when the breach checker is unavailable")
	}
	if len(users.byID) != 0 {
		t.Error("registration must not proceed when the check did not complete")
	}
	if breach.calls != 1 {
		t.Errorf("breach checker called %d times, want 1", breach.calls)
	}
}

func TestChangePassword(t *testing.T) {
	users := newMemUserRepo()
	passwords := &memPasswordRepo{}
	breach := &fakeBreachChecker{pwned: map[string]bool{"leaked-pass": true}}
	s := newTestService(users, passwords, breach)

	u := register(t, s, "dave", "OldPass123")
	oldHash := u.PasswordHash

	if err := s.ChangePassword(context.Background(), u.ID, "bad", "NewPass123"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong current password, got %v", err)
	}

	var verr *ValidationError
	if err := s.ChangePassword(context.Background(), u.ID, "OldPass123", "OldPass123"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for identical password, got %v", err)
	}

	// A flagged replacement is rejected before anything is written.
	if err := s.ChangePassword(context.Background(), u.ID, "OldPass123", "leaked-pass"); !errors.Is(err, ErrPasswordBreached) {
		t.Fatalf("expected ErrPasswordBreached, got %v", err)
	}
	if len(passwords.records) != 1 {
		t.Fatalf("rejected change must not append history, records = %d", len(passwords.records))
	}
	if users.byID[u.ID].PasswordHash != oldHash {
		t.Fatal("rejected change must leave the stored hash unchanged")
	}

	if err := s.ChangePassword(context.Background(), u.ID, "OldPass123", "NewPass123"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := s.Login(context.Background(), "dave", "OldPass123"); err == nil {
		t.Fatal("old password must stop working after the change")
	}
	if _, err := s.Login(context.Background(), "dave", "NewPass123"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	history, err := s.PasswordHistory(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history))
	}
	if history[0].ExpiredAt != nil {
		t.Error("current record must be open ended")
	}
	if history[1].ExpiredAt == nil || !history[1].ExpiredAt.Equal(history[0].CreatedAt) {
		t.Errorf("superseded record must expire when its successor was created: %v vs %v",
			history[1].ExpiredAt, history[0].CreatedAt)
	}
}

func TestChangePasswordSurfacesHistoryFailure(t *testing.T) {
	users := newMemUserRepo()
	passwords := &memPasswordRepo{}
	s := newTestService(users, passwords, &fakeBreachChecker{})

	u := register(t, s, "erin", "OldPass123")
	passwords.fail = true

	if err := s.ChangePassword(context.Background(), u.ID, "OldPass123", "NewPass123"); err == nil {
		t.Fatal("a failed history append must fail the change, not be swallowed")
	}
}
