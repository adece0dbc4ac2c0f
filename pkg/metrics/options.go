// Package metrics provides Prometheus metrics for the fleetready pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager built by NewManager or Configure.
type Option func(*Manager)

// WithNamespace overrides the "fleetready" namespace. Empty keeps it.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem overrides the "pipeline" subsystem. Empty keeps it.
func WithSubsystem(sub string) Option {
	return func(m *Manager) {
		if sub != "" {
			m.subsystem = sub
		}
	}
}

// WithLatencyBuckets sets the buckets of every millisecond histogram.
func WithLatencyBuckets(buckets ...float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = append([]float64(nil), buckets...)
		}
	}
}

// WithEnabled switches export on or off. A disabled Manager still accepts
// every Record and Update call but registers nothing on its registry.
func WithEnabled(on bool) Option {
	return func(m *Manager) { m.enabled = on }
}

// WithRefreshInterval sets the period returned by RefreshInterval.
// Non-positive values are ignored.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshInterval = d
		}
	}
}

// WithConstLabels attaches labels to every series, e.g. the deployment.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.customLabels[k] = v
		}
	}
}

// WithRegistry registers the collectors on reg instead of the default
// registerer.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}
