package domain

import (
	"testing"
	"time"
)

func TestDeriveExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Most recent first, the order the store returns them in.
	records := []PasswordRecord{
		{UserID: 1, HashAndSalt: "h3", CreatedAt: base.Add(48 * time.Hour)},
		{UserID: 1, HashAndSalt: "h2", CreatedAt: base.Add(24 * time.Hour)},
		{UserID: 1, HashAndSalt: "h1", CreatedAt: base},
	}

	out := DeriveExpiry(records)

	if out[0].ExpiredAt != nil {
		t.Errorf("newest record must be open ended, got %v", out[0].ExpiredAt)
	}
	if out[1].ExpiredAt == nil || !out[1].ExpiredAt.Equal(out[0].CreatedAt) {
		t.Errorf("out[1].ExpiredAt = %v, want %v", out[1].ExpiredAt, out[0].CreatedAt)
	}
	if out[2].ExpiredAt == nil || !out[2].ExpiredAt.Equal(out[1].CreatedAt) {
		t.Errorf("out[2].ExpiredAt = %v, want %v", out[2].ExpiredAt, out[1].CreatedAt)
	}

	// Windows tile: each record is valid from its creation to its successor's.
	for i := 1; i < len(out); i++ {
		if !out[i].CreatedAt.Before(*out[i].ExpiredAt) {
			t.Errorf("record %d has an empty validity window", i)
		}
	}
}

func TestDeriveExpiryEmptyAndSingle(t *testing.T) {
	if out := DeriveExpiry(nil); len(out) != 0 {
		t.Fatalf("expected empty result, got %d records", len(out))
	}

	single := []PasswordRecord{{UserID: 1, HashAndSalt: "h1", CreatedAt: time.Now()}}
	out := DeriveExpiry(single)
	if len(out) != 1 || out[0].ExpiredAt != nil {
		t.Fatal("a single record must stay open ended")
	}
}
