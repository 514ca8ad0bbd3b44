// Package repository holds upload batches in memory.
package repository

import (
	"container/list"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultMaxBatches    = 10_000
	defaultPruneInterval = time.Minute
)

// Store provides read/write access to upload batches.
type Store interface {
	// Put stores a new batch. Returns ErrExists if the id is taken.
	Put(ctx context.Context, b model.Batch) error

	// Get returns a copy of the batch. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (model.Batch, error)

	// Update applies fn to the stored batch under the store lock and returns
	// the result. If fn fails the batch is left unchanged.
	Update(ctx context.Context, id string, fn func(*model.Batch) error) (model.Batch, error)

	// Delete removes a batch. Returns ErrNotFound if unknown.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored batches.
	Count(ctx context.Context) int
}

// BatchStore is an in-memory Store bounded by count and age.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]*list.Element
	order   *list.List // front = oldest

	maxBatches    int
	retention     time.Duration
	pruneInterval time.Duration
	now           func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*BatchStore)(nil)

// NewBatchStore constructs a batch store. When retention is set, a background
// sweep runs until ctx is done or Close is called.
func NewBatchStore(ctx context.Context, opts ...Option) *BatchStore {
	s := &BatchStore{
		batches:       make(map[string]*list.Element),
		order:         list.New(),
		maxBatches:    defaultMaxBatches,
		pruneInterval: defaultPruneInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics.UpdateBatchesStored(0)
	if s.retention > 0 {
		s.startPruner(ctx)
	}
	return s
}

func (s *BatchStore) startPruner(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Prune(ctx)
			}
		}
	}()
}

// Close stops the background sweep.
func (s *BatchStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Put implements Store.Put.
func (s *BatchStore) Put(_ context.Context, b model.Batch) error {
	if b.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidBatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, b.ID)
	}
	now := s.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	s.batches[b.ID] = s.order.PushBack(clone(b))

	if s.maxBatches > 0 {
		for s.order.Len() > s.maxBatches {
			s.removeLocked(s.order.Front())
		}
	}
	metrics.UpdateBatchesStored(s.order.Len())
	return nil
}

// Get implements Store.Get.
func (s *BatchStore) Get(_ context.Context, id string) (model.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.batches[id]
	if !ok {
		return model.Batch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(el.Value.(model.Batch)), nil //nolint:forcetypeassert // list only holds batches
}

// Update implements Store.Update.
func (s *BatchStore) Update(_ context.Context, id string, fn func(*model.Batch) error) (model.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.batches[id]
	if !ok {
		return model.Batch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	b := clone(el.Value.(model.Batch)) //nolint:forcetypeassert // list only holds batches
	if err := fn(&b); err != nil {
		return model.Batch{}, err
	}
	b.ID = id
	b.UpdatedAt = s.now()
	el.Value = b
	return clone(b), nil
}

// Delete implements Store.Delete.
func (s *BatchStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.removeLocked(el)
	metrics.UpdateBatchesStored(s.order.Len())
	return nil
}

// Count implements Store.Count.
func (s *BatchStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Prune removes batches not updated within the retention window and returns
// how many were removed.
func (s *BatchStore) Prune(_ context.Context) int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if b := el.Value.(model.Batch); b.UpdatedAt.Before(cutoff) { //nolint:forcetypeassert // list only holds batches
			s.removeLocked(el)
			removed++
		}
		el = next
	}
	if removed > 0 {
		metrics.UpdateBatchesStored(s.order.Len())
	}
	return removed
}

func (s *BatchStore) removeLocked(el *list.Element) {
	b := s.order.Remove(el).(model.Batch) //nolint:forcetypeassert // list only holds batches
	delete(s.batches, b.ID)
}

// clone detaches the slices so callers cannot mutate stored state.
func clone(b model.Batch) model.Batch {
	b.Documents = slices.Clone(b.Documents)
	b.Projects = slices.Clone(b.Projects)
	b.Failures = slices.Clone(b.Failures)
	return b
}
