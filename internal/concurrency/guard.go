package concurrency

import (
	"context"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/version"
)

// CheckPrecondition compares a caller-supplied conditional tag against the
// entity's current raw version. An absent tag skips the check entirely
// (last-writer-wins is allowed); a present tag must match exactly.
func CheckPrecondition(ifMatch string, raw []byte) error {
	if ifMatch == "" {
		return nil
	}
	if !version.Matches(ifMatch, raw) {
		return domain.ErrPreconditionFailed
	}
	return nil
}

// Mutation describes one guarded write on a versioned entity.
//
// Fetch loads the current entity and its raw version; CrossRef verifies the
// fetched entity belongs to the parent addressed by the request (nil to
// skip); Apply delegates the write to storage, which atomically advances
// the row version, and returns the new raw version.
type Mutation[T any] struct {
	Fetch    func(ctx context.Context) (T, []byte, error)
	CrossRef func(entity T) error
	Apply    func(ctx context.Context, entity T) ([]byte, error)
}

// Run executes the mutation state machine in strict sequence: fetch,
// precondition check, cross-reference check, apply. On success it returns
// the entity and the freshly encoded version tag for the response header.
// Deletes run the identical machine; their Apply returns a nil raw version
// and the returned tag is empty.
func Run[T any](ctx context.Context, ifMatch string, m Mutation[T]) (T, string, error) {
	var zero T

	entity, raw, err := m.Fetch(ctx)
	if err != nil {
		return zero, "", err
	}

	if err := CheckPrecondition(ifMatch, raw); err != nil {
		return zero, "", err
	}

	if m.CrossRef != nil {
		if err := m.CrossRef(entity); err != nil {
			return zero, "", err
		}
	}

	newRaw, err := m.Apply(ctx, entity)
	if err != nil {
		return zero, "", err
	}
	if newRaw == nil {
		return entity, "", nil
	}
	return entity, version.Encode(newRaw), nil
}
