package lookup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/aquamonitor/pkg/cache"
)

// Entry is one row of a lookup table
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Service reads the unit and measurement-kind lookup tables. Results are
// near-static, so they sit in a TTL cache in front of postgres.
type Service struct {
	db     *sql.DB
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a lookup service
func NewService(db *sql.DB, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.New()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		db:     db,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Units returns all known units
func (s *Service) Units(ctx context.Context) ([]Entry, error) {
	return s.table(ctx, "units")
}

// MeasurementKinds returns all known measurement kinds
func (s *Service) MeasurementKinds(ctx context.Context) ([]Entry, error) {
	return s.table(ctx, "measurement_kinds")
}

// IsKnownKind reports whether the name appears in the kind table
func (s *Service) IsKnownKind(ctx context.Context, name string) (bool, error) {
	kinds, err := s.MeasurementKinds(ctx)
	if err != nil {
		return false, err
	}
	for _, k := range kinds {
		if k.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) table(ctx context.Context, name string) ([]Entry, error) {
	key := "lookup:" + name
	if cached, ok := s.cache.Get(key); ok {
		if entries, ok := cached.([]Entry); ok {
			return entries, nil
		}
	}

	// name comes from the two call sites above, never from input
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, name FROM %s ORDER BY id", name))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Set(key, entries, s.ttl)
	s.logger.Debug("lookup table loaded", slog.String("table", name), slog.Int("rows", len(entries)))
	return entries, nil
}
