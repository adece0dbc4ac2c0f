package vendorapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for vendor pulls.
var (
	ErrCredentials = errors.New("vendor credentials unavailable")
	ErrPayload     = errors.New("unexpected vendor payload")
	ErrStatus      = errors.New("unexpected vendor status")
)

// StatusError reports a non-2xx vendor response.
type StatusError struct {
	Vendor string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor %s: status %d: %s", e.Vendor, e.Code, e.Body)
}

// Is matches ErrStatus.
func (e *StatusError) Is(target error) bool { return target == ErrStatus }
