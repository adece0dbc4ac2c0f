package service

import (
	"time"

	"github.com/okian/fleetready/internal/domain/dedupe"
	"github.com/okian/fleetready/internal/domain/merge"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/internal/domain/scoring"
	"github.com/okian/fleetready/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending batches.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the default in-memory admission cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDeduper replaces the admission cache, e.g. with dedupe.NewRedis.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithNormalizeParallelism bounds concurrent normalization within a batch.
func WithNormalizeParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithLockStripes sets the number of identity-group lock stripes.
func WithLockStripes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lockStripes = n
		}
	}
}

// WithScoreWindowDays sets the rolling window used for scoring.
func WithScoreWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithSummaryCacheTTL bounds the staleness of the cached fleet summary.
func WithSummaryCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.summaryTTL = ttl
		}
	}
}

// WithNormalizerOptions configures the record normalizer.
func WithNormalizerOptions(opts ...normalize.Option) Option {
	return func(s *Service) {
		s.normalizeOpts = append(s.normalizeOpts, opts...)
	}
}

// WithMergeOptions configures the merge engine.
func WithMergeOptions(opts ...merge.Option) Option {
	return func(s *Service) {
		s.mergeOpts = append(s.mergeOpts, opts...)
	}
}

// WithScoringOptions configures the compliance scorer.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
