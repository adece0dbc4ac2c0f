package main

import (
	"context"
	"runtime"
	"time"

	app "github.com/okian/fleetready/internal/app"
	"github.com/okian/fleetready/pkg/metrics"
)

const nanosecondsPerMillisecond = 1e6

// startMetricsUpdaters runs the gauge updaters at the configured period.
// Nothing runs when export is disabled.
func startMetricsUpdaters(ctx context.Context, svc *app.Service) {
	if !metrics.Enabled() {
		return
	}
	every := metrics.RefreshInterval()
	go startSystemMetricsUpdater(ctx, every)
	go startServiceMetricsUpdater(ctx, svc, every)
}

// startSystemMetricsUpdater updates runtime metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates queue and worker metrics until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc.GetStats(ctx))
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics publishes the gauges derived from Service.GetStats.
func updateServiceMetrics(stats map[string]any) {
	queueLen, hasLen := stats["queueLength"].(int)
	if hasLen {
		metrics.UpdateQueueSize(queueLen)
	}
	if capacity, ok := stats["queueSize"].(int); ok && capacity > 0 {
		metrics.UpdateQueueCapacity(capacity)
		if hasLen {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(capacity))
		}
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if ships, ok := stats["shipsRanked"].(int); ok {
		metrics.UpdateShipsTracked(ships)
	}
	if mean, ok := stats["fleetMeanScore"].(float64); ok {
		metrics.UpdateFleetMeanScore(mean)
	}
}
