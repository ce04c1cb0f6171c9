package domain

import "errors"

// Sentinel errors shared across repositories, services and handlers.
// Handlers map these to HTTP statuses; anything unclassified becomes a
// generic 400 without surfacing internal detail.
var (
	// ErrNotFound indicates the addressed entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed indicates a stale version tag on a conditional write
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict indicates a conflicting association (sub-resource does not
	// belong to the addressed parent) or a uniqueness violation
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates bad credentials; callers never learn whether
	// the user exists or the password was wrong
	ErrUnauthorized = errors.New("unauthorized")
)
