// Package queue buffers ingestion batches between the intake channels
// (upload, vendor pull, file inbox) and the worker pool.
//
// Enqueue never blocks: a full queue rejects the batch with ErrFull so the
// caller can report backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/metrics"
)

const defaultQueueCapacity = 1_000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a batch. It returns ErrFull or ErrClosed when the batch
	// was not accepted.
	Enqueue(ctx context.Context, b model.Batch) error
	// Dequeue returns a channel of pending batches. The channel is closed
	// when the queue is closed and drained, or when ctx is done.
	Dequeue(ctx context.Context) <-chan model.Batch
	Len(ctx context.Context) int
	Capacity() int
	// Close stops intake. Batches already queued can still be dequeued.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	batches  chan model.Batch
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.batches = make(chan model.Batch, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, b model.Batch) error { //nolint:gocritic // batches travel by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.batches <- b:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Batch {
	out := make(chan model.Batch)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-q.batches:
				if !ok {
					return
				}
				select {
				case out <- b:
					metrics.RecordQueueDequeue()
					q.updateGauges()
				case <-ctx.Done():
					// Not delivered; leave it for another consumer if possible.
					q.requeue(b)
					return
				}
			}
		}
	}()
	return out
}

// requeue puts back a batch that was taken but never handed out.
func (q *InMemoryQueue) requeue(b model.Batch) { //nolint:gocritic // see Enqueue
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.batches <- b:
	default:
		metrics.RecordErrorByComponent("queue", "requeue_dropped")
	}
}

func (q *InMemoryQueue) Len(_ context.Context) int {
	q.updateGauges()
	return len(q.batches)
}

func (q *InMemoryQueue) Capacity() int { return q.capacity }

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.batches)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.batches)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
