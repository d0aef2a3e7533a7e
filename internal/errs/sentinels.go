// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller's role may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed caller input. Never retried automatically.
	ErrValidation = errors.New("validation")
)

// Access code sentinels.
var (
	// ErrNoAccessCode indicates the lesson has no generated code.
	ErrNoAccessCode = errors.New("no access code configured")

	// ErrCodeExpired indicates a temporary code whose expiry has passed.
	ErrCodeExpired = errors.New("access code expired")

	// ErrIncorrectCode indicates submitted digits do not match the stored code.
	ErrIncorrectCode = errors.New("incorrect access code")
)

// ErrNotEnrolled indicates the learner has no enrollment for the lesson's course.
var ErrNotEnrolled = errors.New("not enrolled")
