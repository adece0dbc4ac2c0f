package repository

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/okian/fleetready/internal/domain/types"
	"github.com/okian/fleetready/pkg/metrics"
)

// Treap-based readiness ranking built from the latest score of every ship.
//
// Ordering: score ASC, then shipID ASC. In-order traversal yields the fleet
// from least ready to most ready. Ranks use competition ranking: ships with
// equal scores share a rank and the next rank skips accordingly (1, 1, 3).

// scoreScale keeps four decimals of a 0..100 score in fixed point.
const scoreScale = 10_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return scoreFP(math.MaxInt64)
	case math.IsInf(x, -1):
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(x * scoreScale))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

type boardRecord struct {
	score      scoreFP
	computedAt time.Time
}

// treap node
type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore < bScore
	}
	return aID < bID
}

// priority derives a stable heap priority from the ship id.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: priority(id), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countBelow returns how many nodes have a score strictly lower than score.
func countBelow(n *node, score scoreFP) int {
	count := 0
	for n != nil {
		if n.score < score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collect appends up to limit nodes in rank order.
func collect(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// Board ranks ships least ready first. It is safe for concurrent use.
type Board struct {
	mu    sync.RWMutex
	root  *node
	byID  map[string]boardRecord
	total scoreFP // sum of scores for the fleet mean

	metricsInterval time.Duration
	wg              sync.WaitGroup
	stopChan        chan struct{}
	stopOnce        sync.Once
}

// NewBoard constructs an empty board and starts its metrics updater.
// Call Close to stop the updater.
func NewBoard(ctx context.Context, opts ...BoardOption) *Board {
	b := &Board{
		byID:            make(map[string]boardRecord),
		metricsInterval: 5 * time.Second,
		stopChan:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.startMetricsUpdater(ctx)
	return b
}

// Set records the latest score of a ship, replacing any previous one.
func (b *Board) Set(_ context.Context, shipID string, score float64, computedAt time.Time) {
	ns := toFixedPoint(score)

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.byID[shipID]; ok {
		b.root = deleteNode(b.root, shipID, old.score)
		b.total -= old.score
	}
	b.byID[shipID] = boardRecord{score: ns, computedAt: computedAt.UTC()}
	b.root = insert(b.root, shipID, ns)
	b.total += ns
}

// Load replaces the board content in one step.
func (b *Board) Load(_ context.Context, entries []types.Entry) {
	start := time.Now()
	var (
		root  *node
		byID  = make(map[string]boardRecord, len(entries))
		total scoreFP
	)
	for _, e := range entries {
		ns := toFixedPoint(e.Score)
		if old, ok := byID[e.ShipID]; ok {
			root = deleteNode(root, e.ShipID, old.score)
			total -= old.score
		}
		byID[e.ShipID] = boardRecord{score: ns, computedAt: e.ComputedAt.UTC()}
		root = insert(root, e.ShipID, ns)
		total += ns
	}

	b.mu.Lock()
	b.root, b.byID, b.total = root, byID, total
	b.mu.Unlock()

	metrics.RecordBoardRebuildDuration(float64(time.Since(start).Milliseconds()))
}

// Remove drops a ship from the board.
func (b *Board) Remove(_ context.Context, shipID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.byID[shipID]; ok {
		b.root = deleteNode(b.root, shipID, old.score)
		b.total -= old.score
		delete(b.byID, shipID)
	}
}

// Rank returns the rank of a ship in O(log n).
// Returns ErrNotFound if the ship has no score.
func (b *Board) Rank(_ context.Context, shipID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.byID[shipID]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{
		Rank:       countBelow(b.root, rec.score) + 1,
		ShipID:     shipID,
		Score:      toFloat(rec.score),
		ComputedAt: rec.computedAt,
	}, nil
}

// Bottom returns the n least ready ships.
func (b *Board) Bottom(_ context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(b.byID)))
	collect(b.root, n, &nodes)
	out := make([]types.Entry, len(nodes))
	for i, nd := range nodes {
		rank := i + 1
		if i > 0 && nd.score == nodes[i-1].score {
			rank = out[i-1].Rank
		}
		out[i] = types.Entry{Rank: rank, ShipID: nd.id, Score: toFloat(nd.score), ComputedAt: b.byID[nd.id].computedAt}
	}
	return out, nil
}

// Count returns the number of ranked ships.
func (b *Board) Count(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// Mean returns the mean score of ranked ships, or 0 for an empty board.
func (b *Board) Mean(_ context.Context) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.byID) == 0 {
		return 0
	}
	return math.Round(toFloat(b.total)/float64(len(b.byID))*100) / 100
}

// Close stops the metrics updater.
func (b *Board) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return nil
}

func (b *Board) startMetricsUpdater(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.metricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateShipsTracked(b.Count(ctx))
				metrics.UpdateFleetMeanScore(b.Mean(ctx))
			}
		}
	}()
}
