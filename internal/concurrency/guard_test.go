package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/version"
)

type record struct {
	id         int64
	aquariumID int64
	version    int64
}

// fakeStore advances the version on every apply, like the real store does
type fakeStore struct {
	rec     record
	applied int
}

func (s *fakeStore) mutation(crossRef func(*record) error) Mutation[*record] {
	return Mutation[*record]{
		Fetch: func(ctx context.Context) (*record, []byte, error) {
			if s.rec.id == 0 {
				return nil, nil, domain.ErrNotFound
			}
			r := s.rec
			return &r, version.FromSequence(r.version), nil
		},
		CrossRef: crossRef,
		Apply: func(ctx context.Context, r *record) ([]byte, error) {
			s.applied++
			s.rec.version++
			return version.FromSequence(s.rec.version), nil
		},
	}
}

func TestRunWithCurrentTagAdvancesVersion(t *testing.T) {
	s := &fakeStore{rec: record{id: 5, version: 1}}
	tag := version.Encode(version.FromSequence(1))

	_, newTag, err := Run(context.Background(), tag, s.mutation(nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if newTag == tag {
		t.Fatalf("expected a new tag, got the old one back")
	}
	if s.applied != 1 {
		t.Fatalf("expected exactly one apply, got %d", s.applied)
	}

	// A second request still carrying the old tag must fail without applying
	_, _, err = Run(context.Background(), tag, s.mutation(nil))
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if s.applied != 1 {
		t.Fatalf("stale request must not mutate, applies = %d", s.applied)
	}
	if s.rec.version != 2 {
		t.Fatalf("stale request must leave version unchanged, got %d", s.rec.version)
	}
}

func TestRunWithoutTagSkipsCheck(t *testing.T) {
	s := &fakeStore{rec: record{id: 5, version: 9}}
	_, newTag, err := Run(context.Background(), "", s.mutation(nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if newTag != version.Encode(version.FromSequence(10)) {
		t.Fatalf("unexpected tag %q", newTag)
	}
}

func TestRunNotFound(t *testing.T) {
	s := &fakeStore{}
	_, _, err := Run(context.Background(), "", s.mutation(nil))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunCrossRefMismatch(t *testing.T) {
	s := &fakeStore{rec: record{id: 5, aquariumID: 3, version: 1}}
	crossRef := func(r *record) error {
		if r.aquariumID != 4 {
			return domain.ErrConflict
		}
		return nil
	}
	_, _, err := Run(context.Background(), "", s.mutation(crossRef))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if s.applied != 0 {
		t.Fatalf("cross-reference mismatch must not mutate")
	}
}

func TestRunCrossRefAfterPrecondition(t *testing.T) {
	// A stale tag is reported even when the cross-reference would also fail
	s := &fakeStore{rec: record{id: 5, aquariumID: 3, version: 2}}
	stale := version.Encode(version.FromSequence(1))
	crossRef := func(r *record) error { return domain.ErrConflict }

	_, _, err := Run(context.Background(), stale, s.mutation(crossRef))
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestCheckPrecondition(t *testing.T) {
	raw := version.FromSequence(3)
	if err := CheckPrecondition("", raw); err != nil {
		t.Fatalf("absent tag must pass: %v", err)
	}
	if err := CheckPrecondition(version.Encode(raw), raw); err != nil {
		t.Fatalf("current tag must pass: %v", err)
	}
	if err := CheckPrecondition("bogus", raw); !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("malformed tag must fail precondition, got %v", err)
	}
}
