package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/yourorg/aquamonitor/internal/domain"
)

// PostgresPasswordRepository implements the append-only password history
// store. Rows are inserted, never updated or deleted.
type PostgresPasswordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPasswordRepository creates a new password history repository
func NewPostgresPasswordRepository(db *sql.DB, logger *slog.Logger) *PostgresPasswordRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPasswordRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a history record stamped with the current time. A failed
// insert is returned to the caller; a password change whose history row
// cannot be written must fail as a whole.
func (r *PostgresPasswordRepository) Append(ctx context.Context, userID int64, hashAndSalt string) error {
	query := `
		INSERT INTO user_passwords (user_id, hash_and_salt, created_at)
		VALUES ($1, $2, now())
	`

	if _, err := r.db.ExecContext(ctx, query, userID, hashAndSalt); err != nil {
		r.logger.Error("failed to append password record",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to append password record: %w", err)
	}

	r.logger.Debug("password record appended", slog.Int64("user_id", userID))
	return nil
}

// History returns the user's password records most-recent first, each
// decorated with its derived validity end. The rows come back ordered from
// the store; the expiry derivation is a single linear pass.
func (r *PostgresPasswordRepository) History(ctx context.Context, userID int64) ([]domain.PasswordRecord, error) {
	query := `
		SELECT user_id, hash_and_salt, created_at
		FROM user_passwords
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query password history: %w", err)
	}
	defer rows.Close()

	var records []domain.PasswordRecord
	for rows.Next() {
		var rec domain.PasswordRecord
		if err := rows.Scan(&rec.UserID, &rec.HashAndSalt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan password record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read password history: %w", err)
	}

	return domain.DeriveExpiry(records), nil
}
