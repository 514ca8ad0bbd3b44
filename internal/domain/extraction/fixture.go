package extraction

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/greenalloc/internal/domain/model"
)

// Default fixture configuration constants.
const (
	defaultFixtureMinLatency = 1200 * time.Millisecond
	defaultFixtureMaxLatency = 1800 * time.Millisecond
	defaultFixtureSeed       = 42
)

// Canned records returned by the fixture backend.
var (
	hydroelectricProject = model.Project{
		Name: "Hydroelectric Project", ESGScore: 90, EstimatedReturn: 15.0,
		CarbonReduction: 6000, RiskLevel: 2, RequiredFunding: 500000,
	}
	solarFarmProject = model.Project{
		Name: "Solar Farm Project", ESGScore: 85, EstimatedReturn: 12.5,
		CarbonReduction: 5000, RiskLevel: 3, RequiredFunding: 400000,
	}
	windEnergyProject = model.Project{
		Name: "Wind Energy Initiative", ESGScore: 78, EstimatedReturn: 9.8,
		CarbonReduction: 4200, RiskLevel: 4, RequiredFunding: 300000,
	}
)

// FixtureExtractor stands in for a PDF parsing backend. It waits a simulated
// latency and returns canned projects: one for a single PDF, two for several.
type FixtureExtractor struct {
	minLatency time.Duration
	maxLatency time.Duration
	seed       int64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFixtureExtractor creates a fixture extractor with configuration options.
func NewFixtureExtractor(opts ...FixtureOption) *FixtureExtractor {
	f := &FixtureExtractor{
		minLatency: defaultFixtureMinLatency,
		maxLatency: defaultFixtureMaxLatency,
		seed:       defaultFixtureSeed,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.rng = rand.New(rand.NewSource(f.seed)) //nolint:gosec // latency jitter only
	return f
}

// Extract accepts PDFs only; anything else is reported as a failure.
func (f *FixtureExtractor) Extract(ctx context.Context, docs []model.Document) (Result, error) {
	if len(docs) == 0 {
		return Result{}, ErrNoDocuments
	}

	var res Result
	accepted := 0
	for _, doc := range docs {
		if KindOf(doc) != KindPDF {
			res.Failures = append(res.Failures, failure(doc, fmt.Errorf("%w: %s is not a PDF", ErrUnsupportedDocument, doc.Name)))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return finish(res, len(docs))
	}

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(f.latency()):
	}

	if accepted == 1 {
		res.Projects = []model.Project{hydroelectricProject}
	} else {
		res.Projects = []model.Project{solarFarmProject, windEnergyProject}
	}
	return res, nil
}

func (f *FixtureExtractor) latency() time.Duration {
	spread := f.maxLatency - f.minLatency
	if spread <= 0 {
		return f.minLatency
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minLatency + time.Duration(f.rng.Int63n(int64(spread)))
}
