package domain

import (
	"context"
	"time"
)

// Aquarium represents a tank owned by a user
type Aquarium struct {
	ID            int64
	UserID        int64
	Name          string
	Type          string // e.g. freshwater, marine, brackish
	Shape         string
	WidthCM       int
	HeightCM      int
	DepthCM       int
	Volume        int
	DimensionUnit string
	VolumeUnit    string
	RowVersion    []byte // Store-assigned, advances on every write
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Measurement is a single reading taken against an aquarium
type Measurement struct {
	ID         int64
	UserID     int64
	AquariumID int64
	Kind       string // e.g. ph, temperature, nitrate
	Value      float64
	Unit       string
	TakenAt    time.Time
	RowVersion []byte
	CreatedAt  time.Time
}

// WaterChange records a partial water change on an aquarium
type WaterChange struct {
	ID         int64
	UserID     int64
	AquariumID int64
	Litres     float64
	ChangedAt  time.Time
	RowVersion []byte
	CreatedAt  time.Time
}

// AquariumRepository defines data access for aquariums
type AquariumRepository interface {
	Create(ctx context.Context, a *Aquarium) error
	Get(ctx context.Context, userID, id int64) (*Aquarium, error)
	ListForUser(ctx context.Context, userID int64) ([]*Aquarium, error)
	Update(ctx context.Context, a *Aquarium) error
	Delete(ctx context.Context, id int64) error
}

// MeasurementRepository defines data access for measurements
type MeasurementRepository interface {
	Create(ctx context.Context, m *Measurement) error
	Get(ctx context.Context, id int64) (*Measurement, error)
	ListForAquarium(ctx context.Context, userID, aquariumID int64) ([]*Measurement, error)
	Update(ctx context.Context, m *Measurement) error
	Delete(ctx context.Context, id int64) error
}

// WaterChangeRepository defines data access for water changes
type WaterChangeRepository interface {
	Create(ctx context.Context, wc *WaterChange) error
	Get(ctx context.Context, id int64) (*WaterChange, error)
	ListForAquarium(ctx context.Context, userID, aquariumID int64) ([]*WaterChange, error)
	Update(ctx context.Context, wc *WaterChange) error
	Delete(ctx context.Context, id int64) error
}
