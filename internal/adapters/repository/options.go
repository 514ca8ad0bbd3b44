// Package repository holds upload batches in memory.
package repository

import "time"

// Option applies a configuration option to the BatchStore.
type Option func(*BatchStore)

// WithMaxBatches bounds the number of stored batches; the oldest is evicted
// first. Zero or negative means unbounded.
func WithMaxBatches(n int) Option {
	return func(s *BatchStore) {
		s.maxBatches = n
	}
}

// WithRetention drops batches whose last update is older than d. Zero keeps
// batches until evicted.
func WithRetention(d time.Duration) Option {
	return func(s *BatchStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithPruneInterval sets how often expired batches are swept.
func WithPruneInterval(d time.Duration) Option {
	return func(s *BatchStore) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *BatchStore) {
		if now != nil {
			s.now = now
		}
	}
}
