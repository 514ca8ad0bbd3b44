package extraction

import "time"

// ManifestOption configures a ManifestExtractor.
type ManifestOption func(*ManifestExtractor)

// WithConcurrency bounds how many documents are parsed at once.
func WithConcurrency(n int) ManifestOption {
	return func(m *ManifestExtractor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// FixtureOption configures a FixtureExtractor.
type FixtureOption func(*FixtureExtractor)

// WithLatencyRange sets the simulated document-parsing latency.
func WithLatencyRange(minLatency, maxLatency time.Duration) FixtureOption {
	return func(f *FixtureExtractor) {
		if minLatency >= 0 && maxLatency >= minLatency {
			f.minLatency = minLatency
			f.maxLatency = maxLatency
		}
	}
}

// WithSeed makes the simulated latency reproducible.
func WithSeed(seed int64) FixtureOption {
	return func(f *FixtureExtractor) {
		f.seed = seed
	}
}
