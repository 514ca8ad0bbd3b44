// Package smoke drives a running greenalloc server end to end: it uploads
// documents, waits for extraction and checks the allocations it gets back.
package smoke

import (
	"time"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Files        []string      // Documents to upload as one batch
	UploadID     string        // Idempotency key; generated when empty
	Tolerances   []float64     // Risk tolerances to check
	Uploads      int           // Concurrent duplicate uploads of the same key
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between batch status polls
	WaitTimeout  time.Duration // Upper bound on waiting for extraction
}

// Defaults used when a Config field is zero.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
	DefaultWaitTimeout  = 2 * time.Minute
	DefaultUploads      = 4
)

// DefaultTolerances spans the slider range.
var DefaultTolerances = []float64{0, 25, 50, 75, 100}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.Uploads <= 0 {
		c.Uploads = DefaultUploads
	}
	if len(c.Tolerances) == 0 {
		c.Tolerances = DefaultTolerances
	}
	return c
}

// uploadResponse mirrors the POST /batches response.
type uploadResponse struct {
	Batch     model.Batch `json:"batch"`
	Duplicate bool        `json:"duplicate"`
}

// rankingResponse mirrors the GET /batches/{id}/ranking response.
type rankingResponse struct {
	BatchID       string                `json:"batch_id"`
	RiskTolerance float64               `json:"risk_tolerance"`
	Projects      []types.RankedProject `json:"projects"`
}

// Report holds the outcome of a smoke run.
type Report struct {
	BatchID     string
	Status      model.BatchStatus
	Projects    int
	Failures    int
	Uploads     int
	Duplicates  int
	Checks      int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Allocations map[float64]types.AllocationSet
}
