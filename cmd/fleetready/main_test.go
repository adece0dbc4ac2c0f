package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/internal/adapters/secrets"
	"github.com/okian/fleetready/internal/adapters/vendorapi"
	"github.com/okian/fleetready/internal/config"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/feedgen"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigLoading(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("FLEETREADY_CONFIG", "")
		t.Setenv("FLEETREADY_ADDR", ":8080")
		t.Setenv("FLEETREADY_QUEUE_SIZE", "1000")
		t.Setenv("FLEETREADY_WORKER_COUNT", "4")

		convey.Convey("Then the root options load them", func() {
			opts := &rootOptions{logLevel: "debug"}
			convey.So(opts.load(context.Background()), convey.ShouldBeNil)
			convey.So(opts.cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(opts.cfg.BatchQueueSize, convey.ShouldEqual, 1000)
			convey.So(opts.cfg.WorkerCount, convey.ShouldEqual, 4)
			convey.So(opts.cfg.LogLevel, convey.ShouldEqual, "debug")
			convey.So(opts.log, convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsSettings(t *testing.T) {
	convey.Convey("Given metrics switched off with a two second period", t, func() {
		t.Setenv("FLEETREADY_CONFIG", "")
		t.Setenv("FLEETREADY_METRICS_ENABLED", "false")
		t.Setenv("FLEETREADY_METRICS_REFRESH_SECONDS", "2")
		convey.Reset(func() { metrics.Configure() })

		convey.Convey("When the root options load", func() {
			opts := &rootOptions{}
			convey.So(opts.load(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then the metrics package follows the config", func() {
				convey.So(metrics.Enabled(), convey.ShouldBeFalse)
				convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 2*time.Second)
			})
		})
	})
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "ingest": false, "migrate": false, "score": false, "generate": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestCommandsEndToEnd(t *testing.T) {
	convey.Convey("Given an empty sqlite database", t, func() {
		dir := t.TempDir()
		t.Setenv("FLEETREADY_CONFIG", "")
		t.Setenv("FLEETREADY_DATABASE_DSN", filepath.Join(dir, "fleet.db"))
		t.Setenv("FLEETREADY_WORKER_COUNT", "1")

		convey.Convey("When migrating, generating, ingesting and scoring", func() {
			_, err := execute(t, "migrate")
			convey.So(err, convey.ShouldBeNil)

			feeds := filepath.Join(dir, "feeds")
			out, err := execute(t, "generate", "--ships", "2", "--events", "5", "--out", feeds, "--seed", "7")
			convey.So(err, convey.ShouldBeNil)
			var gen generated
			convey.So(json.Unmarshal([]byte(out), &gen), convey.ShouldBeNil)
			convey.So(gen.Ships, convey.ShouldEqual, 2)
			convey.So(gen.Events, convey.ShouldEqual, 10)
			convey.So(len(gen.Files), convey.ShouldBeGreaterThan, 0)

			csvPath := filepath.Join(feeds, feedgen.VendorYardA+".csv")
			out, err = execute(t, "ingest", csvPath, "--source", feedgen.VendorYardA)
			convey.So(err, convey.ShouldBeNil)
			var report model.BatchReport
			convey.So(json.Unmarshal([]byte(out), &report), convey.ShouldBeNil)
			convey.So(report.Accepted, convey.ShouldBeGreaterThan, 0)
			convey.So(report.Rejected, convey.ShouldEqual, 0)

			convey.Convey("Then a replay is all duplicates", func() {
				out, err := execute(t, "ingest", csvPath, "--source", feedgen.VendorYardA, "--format", "csv")
				convey.So(err, convey.ShouldBeNil)
				var replay model.BatchReport
				convey.So(json.Unmarshal([]byte(out), &replay), convey.ShouldBeNil)
				convey.So(replay.Duplicates, convey.ShouldEqual, report.Accepted+report.Quarantined)
				convey.So(replay.Accepted, convey.ShouldEqual, 0)
			})

			convey.Convey("And the fleet can be rescored", func() {
				out, err := execute(t, "score")
				convey.So(err, convey.ShouldBeNil)
				var res scoreOutput
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.Changed, convey.ShouldEqual, 0)
			})

			convey.Convey("And an unknown ship is reported", func() {
				_, err := execute(t, "score", "--ship", "NOPE-1")
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file format cannot be inferred", func() {
			_, err := execute(t, "ingest", filepath.Join(dir, "feed.txt"))
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "--format")
		})
	})
}

func TestRotatingKeys(t *testing.T) {
	convey.Convey("Given API keys resolved from a secret store", t, func() {
		ctx := context.Background()
		store := secrets.Static{"ops_key": "k-1"}
		cfg := config.New()
		cfg.APIKeys = map[string]string{"ops": "ops_key", "audit": "missing_key"}

		v := newValidator(ctx, cfg, store, logger.Nop())

		convey.Convey("Then a known key authenticates its subject", func() {
			p, err := v.Validate(ctx, "k-1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Subject, convey.ShouldEqual, "ops")
		})

		convey.Convey("And an unknown key is rejected", func() {
			_, err := v.Validate(ctx, "k-2")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("And a reload picks up a rotated value", func() {
			keys := &rotatingKeys{names: cfg.APIKeys, store: store, log: logger.Nop()}
			keys.reload(ctx)
			store["ops_key"] = "k-2"
			keys.reload(ctx)
			_, err := keys.Validate(ctx, "k-1")
			convey.So(err, convey.ShouldNotBeNil)
			p, err := keys.Validate(ctx, "k-2")
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Subject, convey.ShouldEqual, "ops")
		})
	})
}

func TestRetryable(t *testing.T) {
	if !retryable(&repository.PersistenceError{Op: "apply batch", Err: errors.New("disk full")}) {
		t.Errorf("persistence errors should be retried")
	}
	if retryable(errors.New("bad payload")) {
		t.Errorf("other errors should not be retried")
	}
}

type recordingSink struct {
	batches []model.Batch
}

func (s *recordingSink) IngestBatch(_ context.Context, b model.Batch) (model.BatchReport, error) { //nolint:gocritic // matches inbox.Sink
	s.batches = append(s.batches, b)
	return model.BatchReport{BatchID: b.ID, Received: len(b.Records)}, nil
}

func TestPullJob(t *testing.T) {
	convey.Convey("Given a vendor endpoint", t, func() {
		body := `[{"hull":"DDG-51","type":"engine overhaul","completed_at":"2025-03-09"}]`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()

		client := vendorapi.New(secrets.Static{"yard": "secret"}, vendorapi.WithRetry(0, 0, 0))
		ep := vendorapi.Endpoint{Name: "yard", URL: srv.URL, AuthScheme: vendorapi.AuthAPIKey, SecretKey: "yard"}
		sink := &recordingSink{}

		convey.Convey("When the job runs", func() {
			err := pullJob(client, ep, sink)(context.Background())

			convey.Convey("Then the payload is ingested as one batch", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(sink.batches), convey.ShouldEqual, 1)
				convey.So(sink.batches[0].Source, convey.ShouldEqual, "yard")
				convey.So(len(sink.batches[0].Records), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When an empty feed is returned", func() {
			body = `[]`
			err := pullJob(client, ep, sink)(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(sink.batches), convey.ShouldEqual, 0)
		})
	})
}

func TestUpdateServiceMetrics(t *testing.T) {
	convey.Convey("Given service stats", t, func() {
		stats := map[string]any{
			"queueLength":    3,
			"queueSize":      10,
			"workerCount":    2,
			"shipsRanked":    5,
			"fleetMeanScore": 87.5,
		}
		convey.So(func() { updateServiceMetrics(stats) }, convey.ShouldNotPanic)
		convey.So(func() { updateServiceMetrics(map[string]any{"started": false}) }, convey.ShouldNotPanic)
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
