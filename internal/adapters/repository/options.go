package repository

import (
	"time"

	"github.com/okian/fleetready/pkg/logger"
)

// BoardOption applies a configuration option to the Board.
type BoardOption func(*Board)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) BoardOption {
	return func(b *Board) {
		if interval > 0 {
			b.metricsInterval = interval
		}
	}
}

// StoreOption applies a configuration option to the SQLStore.
type StoreOption func(*SQLStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) StoreOption {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}
