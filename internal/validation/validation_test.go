package validation

import (
	"testing"
	"time"

	"github.com/yourorg/aquamonitor/internal/domain"
)

func TestMeasurementsReportAllViolations(t *testing.T) {
	rules := Measurements()

	m := &domain.Measurement{Kind: "", Value: 1}
	failures := rules.Validate(m)
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures (kind, takenAt), got %d: %v", len(failures), failures)
	}

	fields := map[string]bool{}
	for _, f := range failures {
		fields[f.Field] = true
	}
	if !fields["kind"] || !fields["takenAt"] {
		t.Fatalf("expected failures on kind and takenAt, got %v", failures)
	}
}

func TestMeasurementsPHRange(t *testing.T) {
	rules := Measurements()

	cases := []struct {
		name  string
		value float64
		valid bool
	}{
		{"in range", 7.2, true},
		{"lower bound", 0, true},
		{"upper bound", 14, true},
		{"negative", -1, false},
		{"too high", 14.5, false},
	}
	for _, tc := range cases {
		m := &domain.Measurement{Kind: "ph", Value: tc.value, TakenAt: time.Now()}
		failures := rules.Validate(m)
		if tc.valid && len(failures) != 0 {
			t.Errorf("%s: expected valid, got %v", tc.name, failures)
		}
		if !tc.valid && len(failures) == 0 {
			t.Errorf("%s: expected failure, got none", tc.name)
		}
	}
}

func TestValidEntityReturnsEmpty(t *testing.T) {
	a := &domain.Aquarium{Name: "Reef", Volume: 200}
	if failures := Aquariums().Validate(a); len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}

	u := &domain.User{Username: "alice", Email: "alice@example.com"}
	if failures := Users().Validate(u); len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
}

func TestWaterChangeRules(t *testing.T) {
	wc := &domain.WaterChange{Litres: 0}
	failures := WaterChanges().Validate(wc)
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %v", failures)
	}
}
