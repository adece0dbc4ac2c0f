package merge

import (
	"time"

	"github.com/okian/fleetready/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTolerance sets how far apart two reports of the same event may be.
func WithTolerance(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.tolerance = d
		}
	}
}

// WithLogger sets the logger used for conflicts and out-of-order records.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source used for UpdatedAt and LoggedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
