// Package worker drains ingestion batches from the queue and hands them to
// the pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Processor ingests one batch.
type Processor interface {
	IngestBatch(ctx context.Context, b model.Batch) (model.BatchReport, error)
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Batch
}

// Worker processes batches until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)
	// Shutdown stops the worker after its current batch.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	shutdown chan struct{}
	once     sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from queue.
func NewInMemoryWorker(queue Queue, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			if err := w.process(ctx, b); err != nil {
				w.logger.Error(ctx, "batch failed",
					logger.String("batch_id", b.ID),
					logger.Error(err))
			}
		}
	}
}

func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.once.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, b model.Batch) error { //nolint:gocritic // batches travel by value through the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	report, err := w.processor.IngestBatch(ctx, b)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ingest_error")
		if errors.Is(err, context.Canceled) {
			metrics.RecordErrorByType("ingest_cancelled", "low")
		} else {
			metrics.RecordErrorByType("ingest_error", "high")
		}
		return fmt.Errorf("ingest batch %s: %w", b.ID, err)
	}
	w.logger.Info(ctx, "batch ingested",
		logger.String("batch_id", report.BatchID),
		logger.Int("received", report.Received),
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", report.Rejected),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("quarantined", report.Quarantined),
		logger.Duration("took", report.Duration))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	// cancel aborts in-flight batches once the drain deadline passes.
	cancel context.CancelFunc
}

// NewPool creates workerCount workers. A count below 1 means one per CPU.
func NewPool(workerCount int, queue Queue, processor Processor, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(queue, processor,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start runs every worker in its own goroutine. Workers ignore cancellation
// of ctx; they stop only through Shutdown, so queued batches are not lost
// when the caller's context ends first.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
}

// Shutdown closes the queue and waits for workers to drain it. Workers still
// busy when ctx (or the pool timeout) expires are told to stop and their
// in-flight batches are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker did not drain in time", logger.Int("worker_id", i))
			w.stop()
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", drainCtx.Err())
	}
	return nil
}
