package service

import (
	"hash/fnv"
	"sort"
	"sync"
)

// stripedLock serializes work per key with a fixed number of mutexes.
// Keys that share a stripe serialize with each other, which is safe.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n < 1 {
		n = 1
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLock) stripe(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.stripes)))
}

// Lock acquires the stripes of keys in ascending order, so callers locking
// overlapping key sets never deadlock. The returned func releases them.
func (l *stripedLock) Lock(keys ...string) (unlock func()) {
	set := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		set[l.stripe(k)] = struct{}{}
	}
	idx := make([]int, 0, len(set))
	for i := range set {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}
