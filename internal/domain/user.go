package domain

import (
	"context"
	"time"
)

// User represents an account that owns aquariums
type User struct {
	ID           int64
	Username     string // Unique across the system
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string // Bcrypt hash, salt and cost embedded (never returned in API)
	Roles        []string
	RowVersion   []byte // Store-assigned, advances on every write
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
	UpdateLastLogin(ctx context.Context, id int64) error
}

// PasswordRecord is one entry in a user's append-only password history.
// ExpiredAt is derived, never stored: it is the creation time of the record
// that superseded this one, nil for the record still in use.
type PasswordRecord struct {
	UserID      int64
	HashAndSalt string
	CreatedAt   time.Time
	ExpiredAt   *time.Time
}

// PasswordRepository is the append-only password history store.
// Append never overwrites or removes prior records; History returns records
// most-recent first.
type PasswordRepository interface {
	Append(ctx context.Context, userID int64, hashAndSalt string) error
	History(ctx context.Context, userID int64) ([]PasswordRecord, error)
}

// DeriveExpiry decorates history records (ordered most-recent first) with
// their validity end: each record expired the moment its successor was
// created. Answers "was hash H valid at time T" without mutating rows.
func DeriveExpiry(records []PasswordRecord) []PasswordRecord {
	for i := range records {
		if i == 0 {
			records[i].ExpiredAt = nil
			continue
		}
		t := records[i-1].CreatedAt
		records[i].ExpiredAt = &t
	}
	return records
}
