package domain

import "context"

// BreachChecker consults an external leaked-credential corpus. Implementations
// receive the candidate plaintext, never a stored hash. Any error means the
// check did not complete; callers must treat that as a failed password change,
// not as a clean result.
type BreachChecker interface {
	IsPasswordPwned(ctx context.Context, plaintext string) (bool, error)
}
