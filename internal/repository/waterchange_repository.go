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

// PostgresWaterChangeRepository implements domain.WaterChangeRepository
type PostgresWaterChangeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresWaterChangeRepository creates a new water change repository
func NewPostgresWaterChangeRepository(db *sql.DB, logger *slog.Logger) *PostgresWaterChangeRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresWaterChangeRepository{
		db:     db,
		logger: logger,
	}
}

const waterChangeColumns = `id, user_id, aquarium_id, litres, changed_at, row_version, created_at`

// Create inserts a new water change record
func (r *PostgresWaterChangeRepository) Create(ctx context.Context, wc *domain.WaterChange) error {
	query := `
		INSERT INTO water_changes (user_id, aquarium_id, litres, changed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, row_version, created_at
	`

	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query,
		wc.UserID, wc.AquariumID, wc.Litres, wc.ChangedAt,
	).Scan(&wc.ID, &rowVersion, &wc.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create water change",
			slog.Int64("aquarium_id", wc.AquariumID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create water change: %w", err)
	}

	wc.RowVersion = version.FromSequence(rowVersion)
	return nil
}

// Get retrieves a water change by id
func (r *PostgresWaterChangeRepository) Get(ctx context.Context, id int64) (*domain.WaterChange, error) {
	query := `SELECT ` + waterChangeColumns + ` FROM water_changes WHERE id = $1`

	wc := &domain.WaterChange{}
	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&wc.ID, &wc.UserID, &wc.AquariumID, &wc.Litres, &wc.ChangedAt, &rowVersion, &wc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get water change: %w", err)
	}

	wc.RowVersion = version.FromSequence(rowVersion)
	return wc, nil
}

// ListForAquarium returns an aquarium's water changes, most recent first
func (r *PostgresWaterChangeRepository) ListForAquarium(ctx context.Context, userID, aquariumID int64) ([]*domain.WaterChange, error) {
	query := `SELECT ` + waterChangeColumns + `
		FROM water_changes WHERE user_id = $1 AND aquarium_id = $2 ORDER BY changed_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, aquariumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list water changes: %w", err)
	}
	defer rows.Close()

	var changes []*domain.WaterChange
	for rows.Next() {
		wc := &domain.WaterChange{}
		var rowVersion int64
		if err := rows.Scan(&wc.ID, &wc.UserID, &wc.AquariumID, &wc.Litres, &wc.ChangedAt,
			&rowVersion, &wc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan water change: %w", err)
		}
		wc.RowVersion = version.FromSequence(rowVersion)
		changes = append(changes, wc)
	}
	return changes, rows.Err()
}

// Update writes caller-editable fields and advances the row version atomically
func (r *PostgresWaterChangeRepository) Update(ctx context.Context, wc *domain.WaterChange) error {
	query := `
		UPDATE water_changes
		SET litres = $1, changed_at = $2, row_version = row_version + 1
		WHERE id = $3
		RETURNING row_version
	`

	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query, wc.Litres, wc.ChangedAt, wc.ID).Scan(&rowVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update water change: %w", err)
	}

	wc.RowVersion = version.FromSequence(rowVersion)
	return nil
}

// Delete removes a water change record
func (r *PostgresWaterChangeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM water_changes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete water change: %w", err)
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
