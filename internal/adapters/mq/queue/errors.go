package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	// ErrFull reports backpressure: the batch was not accepted.
	ErrFull   = errors.New("queue full")
	ErrClosed = errors.New("queue closed")
)
