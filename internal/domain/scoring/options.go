package scoring

import "time"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithServiceIntervals sets the required service interval in days per
// event type. Only these types can become overdue.
func WithServiceIntervals(days map[string]int) Option {
	return func(s *Scorer) {
		s.intervals = make(map[string]int, len(days))
		for typ, d := range days {
			if d > 0 {
				s.intervals[typ] = d
			}
		}
	}
}

// WithWeightsFromConfig sets penalty points per overdue day per event type.
func WithWeightsFromConfig(weights map[string]float64, defaultWeight float64) Option {
	return func(s *Scorer) {
		s.weights = make(map[string]float64, len(weights))
		for typ, w := range weights {
			if w >= 0 {
				s.weights[typ] = w
			}
		}
		if defaultWeight >= 0 {
			s.defaultWeight = defaultWeight
		}
	}
}

// WithMTTR sets the repair time target in hours and the penalty per hour
// above it.
func WithMTTR(targetHours, weight float64) Option {
	return func(s *Scorer) {
		if targetHours >= 0 {
			s.mttrTarget = targetHours
		}
		if weight >= 0 {
			s.mttrWeight = weight
		}
	}
}

// WithClock overrides the time source for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}
