package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/fleetready/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DatabaseDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.MergeToleranceHours, convey.ShouldEqual, 72)
			convey.So(cfg.ServiceIntervalsDays["engine_overhaul"], convey.ShouldEqual, 365)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DedupeBackend, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FLEETREADY_ADDR", ":8080")
			_ = os.Setenv("FLEETREADY_QUEUE_SIZE", "50")
			_ = os.Setenv("FLEETREADY_MERGE_TOLERANCE_HOURS", "24")
			_ = os.Setenv("FLEETREADY_AUTH_ENABLED", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BatchQueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.MergeToleranceHours, convey.ShouldEqual, 24)
				convey.So(cfg.AuthEnabled, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			path := writeTempConfig(t, `
addr: ":9090"
worker_count: 3
service_intervals_days:
  engine_overhaul: 200
vendors:
  - name: acme
    url: http://acme.example/records
    auth_scheme: api_key
    secret_key: acme_key
    fields:
      ship_id: hull.id
`)
			_ = os.Setenv("FLEETREADY_CONFIG", path)
			_ = os.Setenv("FLEETREADY_WORKER_COUNT", "7")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides the file, and the file overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
				convey.So(cfg.ServiceIntervalsDays["engine_overhaul"], convey.ShouldEqual, 200)
				convey.So(cfg.Vendors, convey.ShouldHaveLength, 1)
				convey.So(cfg.Vendors[0].Fields["ship_id"], convey.ShouldEqual, "hull.id")
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			path := writeTempConfig(t, `invalid: yaml: content: [`)
			_ = os.Setenv("FLEETREADY_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("FLEETREADY_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When validation fails", func() {
			_ = os.Setenv("FLEETREADY_DATABASE_DRIVER", "oracle")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it wraps ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When metrics are switched off with a custom period", func() {
			_ = os.Setenv("FLEETREADY_METRICS_ENABLED", "false")
			_ = os.Setenv("FLEETREADY_METRICS_REFRESH_SECONDS", "2")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then both settings are loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsRefreshSeconds, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the metrics period is zero", func() {
			_ = os.Setenv("FLEETREADY_METRICS_REFRESH_SECONDS", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the redis backend has no address", func() {
			_ = os.Setenv("FLEETREADY_DEDUPE_BACKEND", "redis")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"FLEETREADY_CONFIG", "FLEETREADY_ADDR", "FLEETREADY_QUEUE_SIZE",
		"FLEETREADY_MERGE_TOLERANCE_HOURS", "FLEETREADY_AUTH_ENABLED",
		"FLEETREADY_WORKER_COUNT", "FLEETREADY_DATABASE_DRIVER", "FLEETREADY_DEDUPE_BACKEND",
		"FLEETREADY_METRICS_ENABLED", "FLEETREADY_METRICS_REFRESH_SECONDS",
	} {
		_ = os.Unsetenv(k)
	}
}
