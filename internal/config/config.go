// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and FLEETREADY_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver is "sqlite" or "postgres".
	DatabaseDriver string `koanf:"database_driver"`
	// DatabaseDSN is a file path for sqlite or a connection string for postgres.
	DatabaseDSN string `koanf:"database_dsn"`

	// BatchQueueSize bounds the in-memory batch queue.
	BatchQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// NormalizeParallelism bounds concurrent normalization within a batch.
	NormalizeParallelism int `koanf:"normalize_parallelism"`

	// DedupeBackend is "memory" or "redis".
	DedupeBackend string `koanf:"dedupe_backend"`
	// DedupeSize bounds the in-memory admission cache.
	DedupeSize int `koanf:"dedupe_size"`
	// RedisAddr is used when DedupeBackend is "redis".
	RedisAddr string `koanf:"redis_addr"`

	// MergeToleranceHours is the similarity window for grouping records.
	MergeToleranceHours int `koanf:"merge_tolerance_hours"`
	// LockStripes sets the number of identity-group lock stripes.
	LockStripes int `koanf:"lock_stripes"`

	// ScoreWindowDays is the rolling window used for automatic scoring.
	ScoreWindowDays int `koanf:"score_window_days"`
	// ServiceIntervalsDays maps event types to required service intervals.
	ServiceIntervalsDays map[string]int `koanf:"service_intervals_days"`
	// OverdueWeights maps event types to penalty points per overdue day.
	OverdueWeights map[string]float64 `koanf:"overdue_weights"`
	// DefaultOverdueWeight applies to types without an explicit weight.
	DefaultOverdueWeight float64 `koanf:"default_overdue_weight"`
	// MTTRTargetHours is the repair time target.
	MTTRTargetHours float64 `koanf:"mttr_target_hours"`
	// MTTRWeight is the penalty per hour of MTTR above target.
	MTTRWeight float64 `koanf:"mttr_weight"`

	// TimeLayouts extends the accepted vendor timestamp layouts.
	TimeLayouts []string `koanf:"time_layouts"`

	// SummaryCacheTTLSeconds bounds staleness of GET /fleet/summary.
	SummaryCacheTTLSeconds int `koanf:"summary_cache_ttl_seconds"`

	// MetricsEnabled exposes /metrics and runs the gauge updaters.
	MetricsEnabled bool `koanf:"metrics_enabled"`
	// MetricsRefreshSeconds is the gauge updater period.
	MetricsRefreshSeconds int `koanf:"metrics_refresh_seconds"`
	// MetricsLabels are attached to every exported series.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// InboxDir is scanned for vendor files on each inbox trigger; empty disables it.
	InboxDir string `koanf:"inbox_dir"`
	// InboxSchedule is a cron spec for the inbox scan.
	InboxSchedule string `koanf:"inbox_schedule"`
	// RescoreSchedule is a cron spec for fleet-wide recompute.
	RescoreSchedule string `koanf:"rescore_schedule"`
	// RetryMaxAttempts bounds retries of a scheduled job after a PersistenceError.
	RetryMaxAttempts int `koanf:"retry_max_attempts"`

	// Vendors lists REST endpoints pulled on a schedule.
	Vendors []Vendor `koanf:"vendors"`

	// SecretsFile is a YAML map of secret names to values, watched for rotation.
	SecretsFile string `koanf:"secrets_file"`

	// AuthEnabled protects write endpoints with bearer tokens.
	AuthEnabled bool `koanf:"auth_enabled"`
	// AuthSecretKey names the HMAC signing secret in the secret store.
	AuthSecretKey string `koanf:"auth_secret_key"`
	// AuthIssuer, when set, must match the iss claim of bearer tokens.
	AuthIssuer string `koanf:"auth_issuer"`
	// APIKeys maps a caller name to the secret holding its static API key.
	APIKeys map[string]string `koanf:"api_keys"`
}

// Vendor describes a vendor REST feed.
type Vendor struct {
	Name     string `koanf:"name"`
	URL      string `koanf:"url"`
	Schedule string `koanf:"schedule"`
	// AuthScheme is "api_key" or "bearer".
	AuthScheme string `koanf:"auth_scheme"`
	// SecretKey names the credential in the secret store.
	SecretKey string `koanf:"secret_key"`
	// Fields maps canonical field names to gjson paths in each payload item.
	Fields map[string]string `koanf:"fields"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		DatabaseDriver:       "sqlite",
		DatabaseDSN:          "fleetready.db",
		BatchQueueSize:       1_000,
		WorkerCount:          runtime.NumCPU(),
		NormalizeParallelism: runtime.NumCPU() * 2,
		DedupeBackend:        "memory",
		DedupeSize:           500_000,
		MergeToleranceHours:  72,
		LockStripes:          64,
		ScoreWindowDays:      365,
		ServiceIntervalsDays: map[string]int{
			"engine_overhaul":     365,
			"hull_inspection":     180,
			"fire_system_check":   90,
			"radar_calibration":   120,
			"lifeboat_inspection": 30,
		},
		OverdueWeights: map[string]float64{
			"engine_overhaul":   0.5,
			"fire_system_check": 0.8,
		},
		DefaultOverdueWeight:   0.25,
		MTTRTargetHours:        48,
		MTTRWeight:             0.1,
		SummaryCacheTTLSeconds: 30,
		MetricsEnabled:         true,
		MetricsRefreshSeconds:  10,
		InboxSchedule:          "@every 1m",
		RescoreSchedule:        "@daily",
		RetryMaxAttempts:       3,
		AuthSecretKey:          "api_signing_key",
	}
}
