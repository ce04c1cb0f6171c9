package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/feed"
	"github.com/yourorg/aquamonitor/internal/handler"
	"github.com/yourorg/aquamonitor/internal/infrastructure/logger"
	"github.com/yourorg/aquamonitor/internal/security"
	"github.com/yourorg/aquamonitor/internal/security/audit"
	"github.com/yourorg/aquamonitor/internal/security/auth"
	"github.com/yourorg/aquamonitor/internal/security/middleware"
	"github.com/yourorg/aquamonitor/internal/security/ratelimit"
	"github.com/yourorg/aquamonitor/internal/service"
	"github.com/yourorg/aquamonitor/internal/version"
)

// In-memory stores standing in for postgres. Writes advance a per-row
// sequence exactly like the row_version column does.

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	seq    map[int64]int64
	rows   map[int64]domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{nextID: 1, seq: map[int64]int64{}, rows: map[int64]domain.User{}}
}

func (m *memUsers) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Username == u.Username {
			return fmt.Errorf("username taken: %w", domain.ErrConflict)
		}
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.seq[u.ID] = 1
	u.RowVersion = version.FromSequence(1)
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Username == username {
			row := row
			return &row, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) Update(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[u.ID]; !ok {
		return domain.ErrNotFound
	}
	m.seq[u.ID]++
	u.RowVersion = version.FromSequence(m.seq[u.ID])
	u.UpdatedAt = time.Now()
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	row.LastLogin = &now
	m.seq[id]++
	row.RowVersion = version.FromSequence(m.seq[id])
	m.rows[id] = row
	return nil
}

type memPasswords struct {
	mu   sync.Mutex
	rows []domain.PasswordRecord
}

func (m *memPasswords) Append(ctx context.Context, userID int64, hashAndSalt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, domain.PasswordRecord{
		UserID:      userID,
		HashAndSalt: hashAndSalt,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (m *memPasswords) History(ctx context.Context, userID int64) ([]domain.PasswordRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PasswordRecord
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return domain.DeriveExpiry(out), nil
}

type memAquariums struct {
	mu     sync.Mutex
	nextID int64
	seq    map[int64]int64
	rows   map[int64]domain.Aquarium
}

func newMemAquariums() *memAquariums {
	return &memAquariums{nextID: 1, seq: map[int64]int64{}, rows: map[int64]domain.Aquarium{}}
}

func (m *memAquariums) Create(ctx context.Context, a *domain.Aquarium) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.seq[a.ID] = 1
	a.RowVersion = version.FromSequence(1)
	m.rows[a.ID] = *a
	return nil
}

func (m *memAquariums) Get(ctx context.Context, userID, id int64) (*domain.Aquarium, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memAquariums) ListForUser(ctx context.Context, userID int64) ([]*domain.Aquarium, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Aquarium
	for _, row := range m.rows {
		if row.UserID == userID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

func (m *memAquariums) Update(ctx context.Context, a *domain.Aquarium) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.ID]; !ok {
		return domain.ErrNotFound
	}
	m.seq[a.ID]++
	a.RowVersion = version.FromSequence(m.seq[a.ID])
	a.UpdatedAt = time.Now()
	m.rows[a.ID] = *a
	return nil
}

func (m *memAquariums) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memMeasurements struct {
	mu     sync.Mutex
	nextID int64
	seq    map[int64]int64
	rows   map[int64]domain.Measurement
}

func newMemMeasurements() *memMeasurements {
	return &memMeasurements{nextID: 1, seq: map[int64]int64{}, rows: map[int64]domain.Measurement{}}
}

func (m *memMeasurements) Create(ctx context.Context, e *domain.Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = time.Now()
	m.seq[e.ID] = 1
	e.RowVersion = version.FromSequence(1)
	m.rows[e.ID] = *e
	return nil
}

func (m *memMeasurements) Get(ctx context.Context, id int64) (*domain.Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memMeasurements) ListForAquarium(ctx context.Context, userID, aquariumID int64) ([]*domain.Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Measurement
	for _, row := range m.rows {
		if row.UserID == userID && row.AquariumID == aquariumID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

func (m *memMeasurements) Update(ctx context.Context, e *domain.Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return domain.ErrNotFound
	}
	m.seq[e.ID]++
	e.RowVersion = version.FromSequence(m.seq[e.ID])
	m.rows[e.ID] = *e
	return nil
}

func (m *memMeasurements) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memWaterChanges struct {
	mu     sync.Mutex
	nextID int64
	seq    map[int64]int64
	rows   map[int64]domain.WaterChange
}

func newMemWaterChanges() *memWaterChanges {
	return &memWaterChanges{nextID: 1, seq: map[int64]int64{}, rows: map[int64]domain.WaterChange{}}
}

func (m *memWaterChanges) Create(ctx context.Context, wc *domain.WaterChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wc.ID = m.nextID
	m.nextID++
	wc.CreatedAt = time.Now()
	m.seq[wc.ID] = 1
	wc.RowVersion = version.FromSequence(1)
	m.rows[wc.ID] = *wc
	return nil
}

func (m *memWaterChanges) Get(ctx context.Context, id int64) (*domain.WaterChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memWaterChanges) ListForAquarium(ctx context.Context, userID, aquariumID int64) ([]*domain.WaterChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WaterChange
	for _, row := range m.rows {
		if row.UserID == userID && row.AquariumID == aquariumID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

func (m *memWaterChanges) Update(ctx context.Context, wc *domain.WaterChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[wc.ID]; !ok {
		return domain.ErrNotFound
	}
	m.seq[wc.ID]++
	wc.RowVersion = version.FromSequence(m.seq[wc.ID])
	m.rows[wc.ID] = *wc
	return nil
}

func (m *memWaterChanges) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type breachSet struct {
	pwned map[string]bool
}

func (b *breachSet) IsPasswordPwned(ctx context.Context, plaintext string) (bool, error) {
	return b.pwned[plaintext], nil
}

// newAPIServer wires the full HTTP surface against in-memory stores, with
// the same middleware chain the server binary uses.
func newAPIServer() *httptest.Server {
	log := logger.NewLogger("error")

	users := newMemUsers()
	passwords := &memPasswords{}
	aquariums := newMemAquariums()
	measurements := newMemMeasurements()
	waterChanges := newMemWaterChanges()

	tokenManager := auth.NewTokenManager("test-secret", "aquamonitor")
	authService := service.NewAuthService(users, passwords, &breachSet{pwned: map[string]bool{"hunter2": true}}, tokenManager, 15*time.Minute, log)
	broker := feed.NewBroker(log)

	authz := security.NewAuthorizationService(log)
	auditLogger := audit.NewLogger(log)
	rateLimiter := ratelimit.NewLimiter(10000, time.Minute)

	authHandler := handler.NewAuthHandler(authService, auditLogger, log)
	userHandler := handler.NewUserHandler(authService, users, authz, auditLogger, log)
	aquariumHandler := handler.NewAquariumHandler(aquariums, auditLogger, log)
	measurementHandler := handler.NewMeasurementHandler(measurements, aquariums, broker, auditLogger, log)
	waterChangeHandler := handler.NewWaterChangeHandler(waterChanges, aquariums, auditLogger, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token", authHandler.Token)
	mux.HandleFunc("POST /api/users", userHandler.Register)
	mux.HandleFunc("GET /api/users/{userID}", userHandler.Get)
	mux.HandleFunc("PUT /api/users/{userID}", userHandler.Update)
	mux.HandleFunc("DELETE /api/users/{userID}", userHandler.Delete)
	mux.HandleFunc("POST /api/users/{userID}/password", userHandler.ChangePassword)
	mux.HandleFunc("GET /api/users/{userID}/passwords", userHandler.PasswordHistory)
	mux.HandleFunc("GET /api/aquariums", aquariumHandler.List)
	mux.HandleFunc("POST /api/aquariums", aquariumHandler.Create)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}", aquariumHandler.Get)
	mux.HandleFunc("PUT /api/aquariums/{aquariumID}", aquariumHandler.Update)
	mux.HandleFunc("DELETE /api/aquariums/{aquariumID}", aquariumHandler.Delete)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}/measurements", measurementHandler.List)
	mux.HandleFunc("POST /api/aquariums/{aquariumID}/measurements", measurementHandler.Create)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}/measurements/{measurementID}", measurementHandler.Get)
	mux.HandleFunc("PUT /api/aquariums/{aquariumID}/measurements/{measurementID}", measurementHandler.Update)
	mux.HandleFunc("DELETE /api/aquariums/{aquariumID}/measurements/{measurementID}", measurementHandler.Delete)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}/waterchanges", waterChangeHandler.List)
	mux.HandleFunc("POST /api/aquariums/{aquariumID}/waterchanges", waterChangeHandler.Create)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}", waterChangeHandler.Get)
	mux.HandleFunc("PUT /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}", waterChangeHandler.Update)
	mux.HandleFunc("DELETE /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}", waterChangeHandler.Delete)

	root := middleware.JWTMiddleware(tokenManager, log)(
		middleware.RateLimitMiddleware(rateLimiter, 10000, log)(
			middleware.AuditMiddleware(auditLogger)(mux),
		),
	)

	return httptest.NewServer(root)
}
