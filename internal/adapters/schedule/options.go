package schedule

import (
	"time"

	"github.com/okian/fleetready/pkg/logger"
)

// Option configures a Cron trigger.
type Option func(*Cron)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Cron) {
		if l != nil {
			t.log = l
		}
	}
}

// WithRetry retries failed runs up to attempts extra times with exponential
// backoff starting at base, when retryable reports true for the error.
func WithRetry(attempts int, base time.Duration, retryable func(error) bool) Option {
	return func(t *Cron) {
		if attempts >= 0 {
			t.retries = uint64(attempts)
		}
		if base > 0 {
			t.backoff = base
		}
		if retryable != nil {
			t.retryable = retryable
		}
	}
}
