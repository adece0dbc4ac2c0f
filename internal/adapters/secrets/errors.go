package secrets

import "errors"

// Sentinel errors for secret lookups.
var (
	ErrNotFound = errors.New("secret not found")
	ErrLoad     = errors.New("load secrets failed")
)
