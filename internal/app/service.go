// Package service wires the ingestion pipeline, the canonical store and the
// readiness board into the operations served by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	eventqueue "github.com/okian/fleetready/internal/adapters/mq/queue"
	workerpool "github.com/okian/fleetready/internal/adapters/mq/worker"
	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/internal/domain/dedupe"
	"github.com/okian/fleetready/internal/domain/dependency"
	"github.com/okian/fleetready/internal/domain/merge"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/internal/domain/scoring"
	"github.com/okian/fleetready/internal/domain/types"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// Service implements the operations behind the query surface and the
// ingestion channels.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	board      *repository.Board
	deduper    dedupe.Deduper
	normalizer *normalize.Normalizer
	engine     *merge.Engine
	scorer     *scoring.Scorer
	graph      *dependency.Graph
	queue      eventqueue.Queue
	pool       *workerpool.Pool
	summaries  *expirable.LRU[string, types.FleetSummary]

	locks  *stripedLock
	depMu  sync.Mutex
	seq    atomic.Int64
	lastAt atomic.Int64 // unix nanos of the last persisted batch

	workerCount   int
	queueSize     int
	dedupeSize    int
	parallelism   int
	lockStripes   int
	windowDays    int
	summaryTTL    time.Duration
	recentEvents  int
	normalizeOpts []normalize.Option
	mergeOpts     []merge.Option
	scoringOpts   []scoring.Option

	// started is read by workers while Stop holds mu.
	started atomic.Bool
	now     func() time.Time
	logger  logger.Logger
}

// New constructs a Service over store. Components not supplied through
// options are built with defaults when the service starts.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		workerCount:  runtime.NumCPU(),
		queueSize:    1_000,
		dedupeSize:   500_000,
		parallelism:  runtime.NumCPU() * 2,
		lockStripes:  64,
		windowDays:   365,
		summaryTTL:   30 * time.Second,
		recentEvents: 10,
		graph:        dependency.NewGraph(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the board and dependency graph from the store and starts the
// worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting fleetready service...")

	if s.deduper == nil {
		s.deduper = dedupe.NewInMemory(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New(s.normalizeOpts...)
	}
	if s.engine == nil {
		s.engine = merge.New(append([]merge.Option{merge.WithLogger(s.logger.Named("merge"))}, s.mergeOpts...)...)
	}
	if s.scorer == nil {
		s.scorer = scoring.New(s.scoringOpts...)
	}
	s.locks = newStripedLock(s.lockStripes)
	s.summaries = expirable.NewLRU[string, types.FleetSummary](16, nil, s.summaryTTL)

	seq, err := s.store.MaxSequence(ctx)
	if err != nil {
		return fmt.Errorf("load sequence: %w", err)
	}
	s.seq.Store(seq)

	deps, err := s.store.Dependencies(ctx)
	if err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	if err := s.graph.Load(deps); err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}

	s.board = repository.NewBoard(ctx)
	if err := s.rebuildBoard(ctx); err != nil {
		_ = s.board.Close()
		return err
	}

	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.queue = q
	s.pool = workerpool.NewPool(s.workerCount, q, s, workerpool.WithPoolLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	s.started.Store(true)
	s.logger.Info(ctx, "fleetready service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("ships_ranked", s.board.Count(ctx)),
		logger.Int64("sequence", seq))
	return nil
}

func (s *Service) rebuildBoard(ctx context.Context) error {
	scores, err := s.store.LatestScores(ctx)
	if err != nil {
		return fmt.Errorf("load latest scores: %w", err)
	}
	entries := make([]types.Entry, 0, len(scores))
	for _, sc := range scores {
		entries = append(entries, types.Entry{ShipID: sc.ShipID, Score: sc.Score, ComputedAt: sc.ComputedAt})
	}
	s.board.Load(ctx, entries)
	return nil
}

// Stop drains the queue, stops the workers and the board. The store is
// owned by the caller.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return nil
	}
	s.logger.Info(ctx, "stopping fleetready service...")

	var err error
	if s.pool != nil {
		err = s.pool.Shutdown(ctx)
	}
	if s.board != nil {
		_ = s.board.Close()
	}
	s.started.Store(false)
	s.logger.Info(ctx, "fleetready service stopped")
	return err
}

func (s *Service) isStarted() bool { return s.started.Load() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started.Load(),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"sequence":    s.seq.Load(),
	}
	if !s.started.Load() {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	stats["queueLength"] = queueLen
	stats["shipsRanked"] = s.board.Count(ctx)
	stats["fleetMeanScore"] = s.board.Mean(ctx)
	if at := s.lastAt.Load(); at > 0 {
		stats["lastBatchAt"] = time.Unix(0, at).UTC()
	}
	if d, ok := s.deduper.(interface{ Size() int64 }); ok {
		stats["dedupeSize"] = d.Size()
	}
	metrics.UpdateQueueSize(queueLen)
	return stats
}
