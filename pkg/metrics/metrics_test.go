package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it is enabled under the fleetready namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "fleetready")
				So(manager.subsystem, ShouldEqual, "pipeline")
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("etl"),
				WithLatencyBuckets(0.1, 0.5, 1.0),
				WithRefreshInterval(3*time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(registry),
			)
			manager.eventsCreated.Inc()

			Convey("Then names carry the namespace and series carry the labels", func() {
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_etl_events_created_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating a disabled manager", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithEnabled(false), WithRefreshInterval(0), WithRegistry(registry))
			manager.eventsCreated.Inc()

			Convey("Then recording works but nothing reaches the registry", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager", t, func() {
		prevManager, prevRegistry := globalManager, customRegistry
		Reset(func() { globalManager, customRegistry = prevManager, prevRegistry })

		Convey("When it is reconfigured as disabled", func() {
			Configure(WithEnabled(false), WithRefreshInterval(time.Second))
			RecordEventCreated()

			Convey("Then the served registry stays empty and the period is exposed", func() {
				So(Enabled(), ShouldBeFalse)
				So(RefreshInterval(), ShouldEqual, time.Second)
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})

		Convey("When it is reconfigured with labels", func() {
			Configure(WithConstLabels(map[string]string{"site": "norfolk"}))
			RecordEventCreated()

			Convey("Then the new registry serves labelled series", func() {
				So(Enabled(), ShouldBeTrue)
				So(GetRegistry(), ShouldNotEqual, prevRegistry)
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "site")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording ingestion metrics", func() {
			before := testutil.ToFloat64(globalManager.recordsIngested.WithLabelValues("vendor-a", "csv"))
			RecordRecordIngested("vendor-a", "csv")
			RecordRecordIngested("vendor-a", "csv")

			Convey("Then the labelled counter increases", func() {
				after := testutil.ToFloat64(globalManager.recordsIngested.WithLabelValues("vendor-a", "csv"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording every helper", func() {
			So(func() {
				RecordRecordRejected("format")
				RecordRecordDuplicate()
				RecordRecordOutOfOrder()
				RecordBatchProcessed("ok")
				RecordBatchLatency(12)
				RecordNormalizeLatency(3)
				RecordEventCreated()
				RecordEventMerged()
				RecordFieldConflict("occurred_at")
				RecordQuarantined()
				RecordScoreComputed()
				RecordScoreUnchanged()
				RecordScoringLatency(1)
				RecordScoringError()
				UpdateFleetMeanScore(88.5)
				UpdateShipsTracked(12)
				UpdateOpenIssues(4)
				RecordPersistenceError()
				RecordHTTPRequest("/status", "GET", "200")
				RecordHTTPRequestDuration("/status", "GET", "200", 2)
				RecordRepositoryTxLatency(5)
				RecordRepositoryQueryLatency(1)
				RecordBoardRebuildDuration(1)
				UpdateQueueSize(3)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.03)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0)
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(10)
				RecordWorkerError()
				RecordVendorPull("acme", "ok")
				RecordTriggerRun("inbox", "ok")
				RecordSecretRotation()
				RecordErrorByComponent("merge", "conflict")
				RecordErrorByType("persistence", "high")
				RecordErrorByEndpoint("/ingest", "POST", "client_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordEventCreated()
			families, err := GetRegistry().Gather()

			Convey("Then pipeline metrics are exposed", func() {
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "fleetready_pipeline_events_created_total")
			})
		})
	})
}
