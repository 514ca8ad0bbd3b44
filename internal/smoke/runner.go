package smoke

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
	"github.com/okian/greenalloc/pkg/logger"
)

// Run executes the complete smoke check against cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	if cfg.UploadID == "" {
		cfg.UploadID = uuid.NewString()
	}

	log := logger.Get().Named("smoke")
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	report := &Report{
		StartTime:   time.Now(),
		Allocations: make(map[float64]types.AllocationSet, len(cfg.Tolerances)),
	}

	log.Info(ctx, "starting smoke check",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("files", len(cfg.Files)),
		logger.Int("uploads", cfg.Uploads),
		logger.String("uploadID", cfg.UploadID))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Upload the same batch concurrently
	batchID, err := uploadConcurrently(ctx, client, cfg, report)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	report.BatchID = batchID

	// Step 3: Wait for extraction
	batch, err := waitForBatch(ctx, client, batchID, cfg.PollInterval, cfg.WaitTimeout)
	if err != nil {
		return nil, err
	}
	report.Status = batch.Status
	report.Projects = len(batch.Projects)
	report.Failures = len(batch.Failures)
	if batch.Status == model.BatchFailed {
		return report, fmt.Errorf("%w: %s", ErrBatchFailed, batch.Error)
	}
	log.Info(ctx, "batch ready",
		logger.String("batchID", batchID),
		logger.Int("projects", report.Projects),
		logger.Int("failures", report.Failures))

	// Step 4: Check allocations and ranking at every tolerance
	for _, rt := range cfg.Tolerances {
		set, err := client.Allocations(ctx, batchID, rt)
		if err != nil {
			return report, fmt.Errorf("allocations at %g: %w", rt, err)
		}
		if err := verifyAllocations(batch.Projects, set, rt); err != nil {
			return report, fmt.Errorf("allocations at %g: %w", rt, err)
		}
		ranked, err := client.Ranking(ctx, batchID, rt)
		if err != nil {
			return report, fmt.Errorf("ranking at %g: %w", rt, err)
		}
		if err := verifyRanking(ranked, set); err != nil {
			return report, fmt.Errorf("ranking at %g: %w", rt, err)
		}
		report.Allocations[rt] = set
		report.Checks += 2
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	log.Info(ctx, "smoke check passed",
		logger.String("batchID", report.BatchID),
		logger.Int("checks", report.Checks),
		logger.Int("duplicates", report.Duplicates),
		logger.Duration("duration", report.Duration))
	return report, nil
}

// uploadConcurrently submits the same upload cfg.Uploads times in parallel.
// Exactly one submission may create the batch; the rest must be duplicates of it.
func uploadConcurrently(ctx context.Context, client *Client, cfg Config, report *Report) (string, error) {
	ids := make([]string, cfg.Uploads)
	var duplicates int64

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Uploads {
		g.Go(func() error {
			b, dup, err := client.Upload(gctx, cfg.UploadID, cfg.Files)
			if err != nil {
				return err
			}
			ids[i] = b.ID
			if dup {
				atomic.AddInt64(&duplicates, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	report.Uploads = cfg.Uploads
	report.Duplicates = int(duplicates)
	for _, id := range ids[1:] {
		if id != ids[0] {
			return "", fmt.Errorf("%w: same upload id produced batches %s and %s", ErrCheckFailed, ids[0], id)
		}
	}
	if want := cfg.Uploads - 1; report.Duplicates != want {
		return "", fmt.Errorf("%w: %d duplicates, expected %d", ErrCheckFailed, report.Duplicates, want)
	}
	return ids[0], nil
}

// waitForBatch polls until the batch reaches a terminal status.
func waitForBatch(ctx context.Context, client *Client, id string, interval, limit time.Duration) (model.Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		b, err := client.Batch(ctx, id)
		if err != nil {
			return model.Batch{}, fmt.Errorf("poll batch %s: %w", id, err)
		}
		if b.Status.Terminal() {
			return b, nil
		}
		select {
		case <-ctx.Done():
			return model.Batch{}, fmt.Errorf("batch %s still %s: %w", id, b.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}
