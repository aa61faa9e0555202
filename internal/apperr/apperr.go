// Package apperr defines the failure kinds shared by the access gate, the
// registration repository, the receipt store and the lifecycle engine.
// Callers wrap these sentinels with context and test for them with
// errors.Is; handlers translate each kind into a single HTTP status.
package apperr

import "errors"

var (
	// ErrUnauthenticated means no session was presented or it has expired.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden covers both role and ownership mismatches.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a registration already exists for the
	// (user, event) pair.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition is returned when the persisted status does not
	// allow the requested lifecycle step, usually because of a race.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound covers missing registrations, events, profiles and blobs.
	ErrNotFound = errors.New("not found")
	// ErrStorageFailure is returned when a blob could not be stored or signed.
	ErrStorageFailure = errors.New("storage failure")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
)
