package auth

import "errors"

// Sentinel errors for token validation.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrMissingToken = errors.New("missing token")
	ErrSigningKey   = errors.New("signing key unavailable")
)
