// Package dedupe provides idempotency tracking for dispatched side effects.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen task IDs so a re-judged action does not send its
// notifications or ledger calls twice.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID so a failed dispatch can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper is a bounded seen-set. Entries are evicted oldest-first
// through a ring of insertion order once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // ring buffer of insertion order
	next    int      // ring write position
	maxSize int
	size    atomic.Int64
}

const defaultMaxSize = 50000

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.maxSize)
	d.order = make([]string, d.maxSize)
	return d
}

// SeenAndRecord atomically checks and records an id. The oldest entry is
// evicted when the set is full.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if evicted := d.order[d.next]; evicted != "" {
		if _, ok := d.seen[evicted]; ok {
			delete(d.seen, evicted)
			d.size.Add(-1)
		}
	}
	d.order[d.next] = id
	d.next = (d.next + 1) % d.maxSize

	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord removes an ID from the seen set. The ring slot is left in place;
// eviction skips entries no longer present in the map.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// Size returns the current number of tracked IDs.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
