package service

import (
	"time"

	"github.com/okian/greenalloc/internal/domain/extraction"
	"github.com/okian/greenalloc/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of extraction workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the extraction job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the upload idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithMaxBatches bounds the batch store.
func WithMaxBatches(n int) Option {
	return func(s *Service) {
		s.maxBatches = n
	}
}

// WithBatchRetention sets how long idle batches are kept.
func WithBatchRetention(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.batchRetention = d
		}
	}
}

// WithExtractionTimeout caps a single batch extraction.
func WithExtractionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.extractionTimeout = d
		}
	}
}

// WithExtractionConcurrency bounds concurrent manifest parsing per batch.
func WithExtractionConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.extractionConcurrency = n
		}
	}
}

// WithFixtureLatencyRange sets the simulated PDF extraction latency.
func WithFixtureLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *Service) {
		if minLatency >= 0 && maxLatency >= minLatency {
			s.fixtureMinLatency = minLatency
			s.fixtureMaxLatency = maxLatency
		}
	}
}

// WithExtractor replaces the default manifest/PDF router.
func WithExtractor(e extraction.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
