// Package worker runs extraction jobs off the queue and records the outcome on the batch.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/greenalloc/internal/domain/extraction"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/pkg/logger"
	"github.com/okian/greenalloc/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount = 4
	defaultTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.ExtractionJob

// Updater applies a mutation to a stored batch.
type Updater interface {
	Update(ctx context.Context, id string, fn func(*model.Batch) error) (model.Batch, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes extraction jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	extractor extraction.Extractor
	updater   Updater
	name      string
	timeout   time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, extractor extraction.Extractor, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		extractor: extractor,
		updater:   updater,
		name:      "worker",
		timeout:   defaultTimeout,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "extraction job failed",
					logger.String("batch_id", job.BatchID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process moves a batch through processing to ready or failed.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.WorkerBusy(1)
	defer func() {
		metrics.WorkerBusy(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if _, err := w.updater.Update(ctx, job.BatchID, func(b *model.Batch) error {
		b.Status = model.BatchProcessing
		return nil
	}); err != nil {
		metrics.RecordWorkerError("batch_missing")
		return fmt.Errorf("mark batch processing: %w", err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	res, extractErr := w.extractor.Extract(jobCtx, job.Documents)
	cancel()

	failed := len(res.Failures)
	if extractErr != nil && len(res.Projects) == 0 {
		failed = len(job.Documents)
	}
	metrics.RecordExtraction(float64(time.Since(start).Milliseconds()), len(job.Documents)-failed, failed)

	status := model.BatchReady
	if extractErr != nil {
		status = model.BatchFailed
		if errors.Is(extractErr, context.DeadlineExceeded) {
			extractErr = fmt.Errorf("extraction timed out after %s: %w", w.timeout, extractErr)
		}
	}

	// Record the outcome even if ctx was cancelled during shutdown.
	_, err := w.updater.Update(context.WithoutCancel(ctx), job.BatchID, func(b *model.Batch) error {
		b.Status = status
		b.Projects = res.Projects
		b.Failures = res.Failures
		if extractErr != nil {
			b.Error = extractErr.Error()
		}
		return nil
	})
	if err != nil {
		metrics.RecordWorkerError("batch_missing")
		return fmt.Errorf("store extraction result: %w", err)
	}
	metrics.RecordBatchCompleted(string(status))

	if extractErr != nil {
		metrics.RecordWorkerError("extraction_failed")
		return fmt.Errorf("extract batch %s: %w", job.BatchID, extractErr)
	}

	w.logger.Info(ctx, "batch extracted",
		logger.String("batch_id", job.BatchID),
		logger.Int("projects", len(res.Projects)),
		logger.Int("failures", len(res.Failures)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. Worker options apply to every worker.
func NewPool(workerCount int, queue Queue, extractor extraction.Extractor, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, extractor, updater, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it, and waits for them until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, ctx.Err())
	}
	return nil
}
