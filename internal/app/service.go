// Package service wires the batch pipeline and the allocation engine into the
// operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/greenalloc/internal/adapters/mq/queue"
	workerpool "github.com/okian/greenalloc/internal/adapters/mq/worker"
	"github.com/okian/greenalloc/internal/adapters/repository"
	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/dedupe"
	"github.com/okian/greenalloc/internal/domain/extraction"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
	"github.com/okian/greenalloc/pkg/logger"
	"github.com/okian/greenalloc/pkg/metrics"
)

// Service implements the API dependencies for upload batches and allocations.
type Service struct {
	mu sync.RWMutex
	// keyMu serializes keyed uploads from claim to enqueue so a duplicate never
	// observes a batch that is about to be rolled back.
	keyMu sync.Mutex

	// Core components
	store      *repository.BatchStore
	deduper    dedupe.Deduper
	jobQueue   *jobqueue.InMemoryQueue
	extractor  extraction.Extractor
	workerPool *workerpool.Pool

	// Configuration
	workerCount           int
	queueSize             int
	dedupeSize            int
	maxBatches            int
	batchRetention        time.Duration
	extractionTimeout     time.Duration
	extractionConcurrency int
	fixtureMinLatency     time.Duration
	fixtureMaxLatency     time.Duration

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:           runtime.NumCPU(),
		queueSize:             1000,
		dedupeSize:            50000,
		maxBatches:            10000,
		batchRetention:        24 * time.Hour,
		extractionTimeout:     30 * time.Second,
		extractionConcurrency: 4,
		fixtureMinLatency:     1200 * time.Millisecond,
		fixtureMaxLatency:     1800 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the store, queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting allocation service...")

	s.store = repository.NewBatchStore(ctx,
		repository.WithMaxBatches(s.maxBatches),
		repository.WithRetention(s.batchRetention),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	if s.extractor == nil {
		s.extractor = extraction.NewRouter(
			extraction.NewManifestExtractor(extraction.WithConcurrency(s.extractionConcurrency)),
			extraction.NewFixtureExtractor(extraction.WithLatencyRange(s.fixtureMinLatency, s.fixtureMaxLatency)),
		)
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.extractor, s.store,
		workerpool.WithTimeout(s.extractionTimeout),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "allocation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxBatches", s.maxBatches),
	)
	return nil
}

// Stop drains the job queue and shuts the workers down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping allocation service...")

	err := s.workerPool.Shutdown(ctx)
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "allocation service stopped")
	return err
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SubmitUpload stores a pending batch for docs and queues it for extraction.
// A non-empty uploadKey makes the call idempotent: a repeated key returns the
// batch it first created and duplicate=true.
func (s *Service) SubmitUpload(ctx context.Context, uploadKey string, docs []model.Document) (model.Batch, bool, error) {
	if err := s.running(); err != nil {
		return model.Batch{}, false, err
	}
	if len(docs) == 0 {
		return model.Batch{}, false, fmt.Errorf("%w: %w", ErrInvalidUpload, extraction.ErrNoDocuments)
	}

	id := uuid.NewString()
	batch := model.Batch{
		ID:        id,
		UploadKey: uploadKey,
		Documents: make([]string, len(docs)),
		Status:    model.BatchPending,
		Projects:  []model.Project{},
	}
	for i, d := range docs {
		batch.Documents[i] = d.Name
	}

	// The batch is stored before the key is claimed so a concurrent upload
	// with the same key always finds the winner's batch.
	if err := s.store.Put(ctx, batch); err != nil {
		return model.Batch{}, false, fmt.Errorf("store batch: %w", err)
	}
	if uploadKey != "" {
		s.keyMu.Lock()
		defer s.keyMu.Unlock()
		if existing, dup := s.claim(ctx, uploadKey, id); dup {
			_ = s.store.Delete(ctx, id)
			metrics.RecordBatchDuplicate()
			s.logger.Debug(ctx, "duplicate upload",
				logger.String("upload_id", uploadKey),
				logger.String("batch_id", existing.ID),
			)
			return existing, true, nil
		}
	}

	rollback := func() {
		if uploadKey != "" {
			s.deduper.Release(ctx, uploadKey)
		}
		_ = s.store.Delete(ctx, id)
	}

	job := model.ExtractionJob{BatchID: id, Documents: docs, Enqueued: time.Now()}
	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		rollback()
		if errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed) {
			s.logger.Warn(ctx, "rejecting upload", logger.String("batch_id", id), logger.Error(err))
			return model.Batch{}, false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return model.Batch{}, false, fmt.Errorf("enqueue batch: %w", err)
	}

	metrics.RecordBatchCreated()
	s.logger.Info(ctx, "batch accepted",
		logger.String("batch_id", id),
		logger.Int("documents", len(docs)),
	)

	stored, err := s.store.Get(ctx, id)
	if err != nil {
		// A worker or eviction may already have touched it; report what we queued.
		return batch, false, nil //nolint:nilerr // the batch was accepted
	}
	return stored, false, nil
}

// claim binds key to id. If the key already maps to a live batch, that batch is
// returned with dup=true. A key whose batch has been evicted is rebound.
func (s *Service) claim(ctx context.Context, key, id string) (model.Batch, bool) {
	bound, seen := s.deduper.Claim(ctx, key, id)
	if !seen {
		return model.Batch{}, false
	}
	if existing, err := s.store.Get(ctx, bound); err == nil {
		return existing, true
	}
	s.deduper.Release(ctx, key)
	if bound, seen = s.deduper.Claim(ctx, key, id); seen {
		// Lost a race with another upload using the same key.
		if existing, err := s.store.Get(ctx, bound); err == nil {
			return existing, true
		}
	}
	return model.Batch{}, false
}

// Batch returns a batch by id.
func (s *Service) Batch(ctx context.Context, id string) (model.Batch, error) {
	if err := s.running(); err != nil {
		return model.Batch{}, err
	}
	b, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return b, err
}

func (s *Service) readyProjects(ctx context.Context, id string) ([]model.Project, error) {
	b, err := s.Batch(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case model.BatchReady:
		return b.Projects, nil
	case model.BatchFailed:
		return nil, fmt.Errorf("%w: %s", ErrBatchFailed, b.Error)
	default:
		return nil, fmt.Errorf("%w: batch %s is %s", ErrBatchNotReady, id, b.Status)
	}
}

// Allocate runs the allocation engine over projects at riskTolerance.
func (s *Service) Allocate(ctx context.Context, projects []model.Project, riskTolerance float64) (types.AllocationSet, error) {
	start := time.Now()
	res, err := allocation.Run(projects, riskTolerance)
	if err != nil {
		metrics.RecordAllocationError("invalid_input")
		return types.AllocationSet{}, err
	}
	metrics.RecordAllocation(len(projects), float64(time.Since(start).Microseconds())/1000, res.EqualSplit)
	if res.EqualSplit && s.logger != nil {
		s.logger.Debug(ctx, "scores summed to zero, using equal split", logger.Int("projects", len(projects)))
	}

	return types.AllocationSet{
		RiskTolerance: riskTolerance,
		TotalScore:    res.TotalScore,
		EqualSplit:    res.EqualSplit,
		Allocations:   res.Allocations,
	}, nil
}

// Allocations runs the engine over a ready batch.
func (s *Service) Allocations(ctx context.Context, batchID string, riskTolerance float64) (types.AllocationSet, error) {
	projects, err := s.readyProjects(ctx, batchID)
	if err != nil {
		return types.AllocationSet{}, err
	}
	set, err := s.Allocate(ctx, projects, riskTolerance)
	if err != nil {
		return types.AllocationSet{}, err
	}
	set.BatchID = batchID
	return set, nil
}

// Ranking orders a ready batch's projects by score at riskTolerance.
func (s *Service) Ranking(ctx context.Context, batchID string, riskTolerance float64) ([]types.RankedProject, error) {
	projects, err := s.readyProjects(ctx, batchID)
	if err != nil {
		return nil, err
	}
	ranked, err := allocation.Rank(projects, riskTolerance)
	if err != nil {
		metrics.RecordAllocationError("invalid_input")
		return nil, err
	}
	return ranked, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"maxBatches":  s.maxBatches,
	}

	if s.started {
		stats["queueLength"] = s.jobQueue.Len(ctx)
		stats["batches"] = s.store.Count(ctx)
		stats["uploadKeys"] = s.deduper.Size()
	}
	return stats
}
