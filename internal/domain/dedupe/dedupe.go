// Package dedupe tracks upload idempotency keys so a retried upload maps back
// to the batch it originally created.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Default deduper configuration constants.
const (
	defaultMaxSize = 50000
)

// Deduper remembers which batch an upload key produced.
type Deduper interface {
	// Claim binds key to batchID unless the key is already bound.
	// It returns the bound batch id and whether the key had been seen before.
	Claim(ctx context.Context, key, batchID string) (string, bool)

	// Release forgets a key, allowing it to be claimed again. Used to roll
	// back a claim when the upload could not be queued.
	Release(ctx context.Context, key string)

	// Size returns the number of keys currently remembered.
	Size() int64
}

type entry struct {
	key     string
	batchID string
}

// inMemoryDeduper keeps keys in insertion order; when bounded, the oldest key
// is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int        // 0 or negative = unbounded
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.keys = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, batchID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		return el.Value.(entry).batchID, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.keys, oldest.Value.(entry).key)
	}
	d.keys[key] = d.order.PushBack(entry{key: key, batchID: batchID})
	return batchID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.order.Remove(el)
		delete(d.keys, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
