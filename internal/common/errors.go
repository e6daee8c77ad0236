// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal   = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Authentication errors. Unknown username and wrong password share
	// ErrInvalidCredentials so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUnauthenticated    = errors.New("unauthenticated")

	// Registration errors.
	ErrDuplicateUsername = errors.New("username already registered")
	ErrDuplicateEmail    = errors.New("email already registered")

	// Authorization errors.
	ErrForbidden = errors.New("forbidden")

	// Token codec errors (malformed, wrongly signed or expired token).
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)
