// Package dedupe tracks admitted VendorRecord IDs so re-ingesting the same
// raw record is a no-op.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen record IDs to ensure at-most-once admission.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) (bool, error)

	// Unrecord forgets id so a record whose batch failed to persist can be
	// admitted again.
	Unrecord(ctx context.Context, id string) error
}

// InMemory implements Deduper with a bounded FIFO set.
// When maxSize <= 0 the set is unbounded.
type InMemory struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
	size    atomic.Int64
}

// NewInMemory creates an in-memory deduper.
func NewInMemory(opts ...Option) *InMemory {
	d := &InMemory{
		maxSize: 50_000,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *InMemory) SeenAndRecord(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true, nil
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushBack(id)
	d.size.Add(1)
	return false, nil
}

// Unrecord implements Deduper.
func (d *InMemory) Unrecord(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
		d.size.Add(-1)
	}
	return nil
}

// evictOldest drops the earliest recorded id. Caller holds d.mu.
func (d *InMemory) evictOldest() {
	el := d.order.Front()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(string))
	d.size.Add(-1)
}

// Size returns the current number of recorded ids.
func (d *InMemory) Size() int64 {
	return d.size.Load()
}
