package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	// ErrBackpressure reports that a batch was refused because the queue is full.
	ErrBackpressure    = errors.New("ingestion backpressure")
	ErrInvalidSeverity = errors.New("invalid severity")
	ErrInvalidBatch    = errors.New("invalid batch")
	ErrInvalidAction   = errors.New("invalid resolve action")
	// ErrNotApplicable reports a quarantined record that cannot be merged,
	// e.g. because its candidate event no longer exists.
	ErrNotApplicable = errors.New("quarantined record not applicable")
)
