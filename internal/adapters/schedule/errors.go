package schedule

import "errors"

// Sentinel errors for the trigger.
var (
	ErrInvalidSpec = errors.New("invalid schedule")
	ErrStarted     = errors.New("trigger already started")
)
