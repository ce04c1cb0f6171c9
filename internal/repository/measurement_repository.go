package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/version"
)

// PostgresMeasurementRepository implements domain.MeasurementRepository
type PostgresMeasurementRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresMeasurementRepository creates a new measurement repository
func NewPostgresMeasurementRepository(db *sql.DB, logger *slog.Logger) *PostgresMeasurementRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMeasurementRepository{
		db:     db,
		logger: logger,
	}
}

const measurementColumns = `id, user_id, aquarium_id, kind, value, unit, taken_at, row_version, created_at`

// Create inserts a new measurement
func (r *PostgresMeasurementRepository) Create(ctx context.Context, m *domain.Measurement) error {
	query := `
		INSERT INTO measurements (user_id, aquarium_id, kind, value, unit, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, row_version, created_at
	`

	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query,
		m.UserID, m.AquariumID, m.Kind, m.Value, m.Unit, m.TakenAt,
	).Scan(&m.ID, &rowVersion, &m.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create measurement",
			slog.Int64("aquarium_id", m.AquariumID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create measurement: %w", err)
	}

	m.RowVersion = version.FromSequence(rowVersion)
	return nil
}

// Get retrieves a measurement by id. Ownership and parentage are checked by
// the caller against the returned foreign keys.
func (r *PostgresMeasurementRepository) Get(ctx context.Context, id int64) (*domain.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE id = $1`
	m, err := scanMeasurement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListForAquarium returns an aquarium's measurements, newest reading first
func (r *PostgresMeasurementRepository) ListForAquarium(ctx context.Context, userID, aquariumID int64) ([]*domain.Measurement, error) {
	query := `SELECT ` + measurementColumns + `
		FROM measurements WHERE user_id = $1 AND aquarium_id = $2 ORDER BY taken_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, aquariumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	defer rows.Close()

	var measurements []*domain.Measurement
	for rows.Next() {
		m := &domain.Measurement{}
		var rowVersion int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.AquariumID, &m.Kind, &m.Value, &m.Unit,
			&m.TakenAt, &rowVersion, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		m.RowVersion = version.FromSequence(rowVersion)
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

// Update writes caller-editable fields and advances the row version atomically
func (r *PostgresMeasurementRepository) Update(ctx context.Context, m *domain.Measurement) error {
	query := `
		UPDATE measurements
		SET kind = $1, value = $2, unit = $3, taken_at = $4, row_version = row_version + 1
		WHERE id = $5
		RETURNING row_version
	`

	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query, m.Kind, m.Value, m.Unit, m.TakenAt, m.ID).Scan(&rowVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update measurement: %w", err)
	}

	m.RowVersion = version.FromSequence(rowVersion)
	return nil
}

// Delete removes a measurement
func (r *PostgresMeasurementRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM measurements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanMeasurement(row *sql.Row) (*domain.Measurement, error) {
	m := &domain.Measurement{}
	var rowVersion int64

	err := row.Scan(&m.ID, &m.UserID, &m.AquariumID, &m.Kind, &m.Value, &m.Unit,
		&m.TakenAt, &rowVersion, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan measurement: %w", err)
	}

	m.RowVersion = version.FromSequence(rowVersion)
	return m, nil
}
