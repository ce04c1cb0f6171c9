package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/version"
)

// PostgresAquariumRepository implements domain.AquariumRepository
type PostgresAquariumRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAquariumRepository creates a new aquarium repository
func NewPostgresAquariumRepository(db *sql.DB, logger *slog.Logger) *PostgresAquariumRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAquariumRepository{
		db:     db,
		logger: logger,
	}
}

const aquariumColumns = `id, user_id, name, type, shape, width_cm, height_cm, depth_cm,
	volume, dimension_unit, volume_unit, row_version, created_at, updated_at`

// Create inserts a new aquarium for its owner
func (r *PostgresAquariumRepository) Create(ctx context.Context, a *domain.Aquarium) error {
	query := `
		INSERT INTO aquariums (user_id, name, type, shape, width_cm, height_cm, depth_cm,
		                       volume, dimension_unit, volume_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, row_version, created_at, updated_at
	`

	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query,
		a.UserID, a.Name, a.Type, a.Shape, a.WidthCM, a.HeightCM, a.DepthCM,
		a.Volume, a.DimensionUnit, a.VolumeUnit,
	).Scan(&a.ID, &rowVersion, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create aquarium",
			slog.Int64("user_id", a.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create aquarium: %w", err)
	}

	a.RowVersion = version.FromSequence(rowVersion)
	return nil
}

// Get retrieves an aquarium scoped to its owner
func (r *PostgresAquariumRepository) Get(ctx context.Context, userID, id int64) (*domain.Aquarium, error) {
	query := `SELECT ` + aquariumColumns + ` FROM aquariums WHERE user_id = $1 AND id = $2`
	return scanAquarium(r.db.QueryRowContext(ctx, query, userID, id))
}

// ListForUser returns all of a user's aquariums, newest first
func (r *PostgresAquariumRepository) ListForUser(ctx context.Context, userID int64) ([]*domain.Aquarium, error) {
	query := `SELECT ` + aquariumColumns + ` FROM aquariums WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aquariums: %w", err)
	}
	defer rows.Close()

	var aquariums []*domain.Aquarium
	for rows.Next() {
		a, err := scanAquariumRow(rows)
		if err != nil {
			return nil, err
		}
		aquariums = append(aquariums, a)
	}
	return aquariums, rows.Err()
}

// Update writes caller-editable fields and advances the row version atomically
func (r *PostgresAquariumRepository) Update(ctx context.Context, a *domain.Aquarium) error {
	query := `
		UPDATE aquariums
		SET name = $1, type = $2, shape = $3, width_cm = $4, height_cm = $5, depth_cm = $6,
		    volume = $7, dimension_unit = $8, volume_unit = $9,
		    row_version = row_version + 1, updated_at = now()
		WHERE id = $10
		RETURNING row_version, updated_at
	`

	var rowVersion int64
	err := r.db.QueryRowContext(ctx, query,
		a.Name, a.Type, a.Shape, a.WidthCM, a.HeightCM, a.DepthCM,
		a.Volume, a.DimensionUnit, a.VolumeUnit, a.ID,
	).Scan(&rowVersion, &a.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update aquarium: %w", err)
	}

	a.RowVersion = version.FromSequence(rowVersion)
	return nil
}

// Delete removes an aquarium; measurements and water changes cascade
func (r *PostgresAquariumRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM aquariums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete aquarium: %w", err)
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

// CountStale counts aquariums with no measurement taken since the cutoff
func (r *PostgresAquariumRepository) CountStale(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM aquariums a
		WHERE NOT EXISTS (
			SELECT 1 FROM measurements m
			WHERE m.aquarium_id = a.id AND m.taken_at > $1
		)
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stale aquariums: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAquarium(row *sql.Row) (*domain.Aquarium, error) {
	a, err := scanAquariumRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func scanAquariumRow(row rowScanner) (*domain.Aquarium, error) {
	a := &domain.Aquarium{}
	var rowVersion int64

	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Type, &a.Shape, &a.WidthCM, &a.HeightCM, &a.DepthCM,
		&a.Volume, &a.DimensionUnit, &a.VolumeUnit, &rowVersion, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan aquarium: %w", err)
	}

	a.RowVersion = version.FromSequence(rowVersion)
	return a, nil
}
