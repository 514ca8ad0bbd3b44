package model

import "time"

// Document is an uploaded file handed to an extractor.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// DocumentFailure records why a single document produced no projects.
type DocumentFailure struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

// BatchStatus tracks an upload through extraction.
type BatchStatus string

// Batch lifecycle states.
const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchReady      BatchStatus = "ready"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s BatchStatus) Terminal() bool {
	return s == BatchReady || s == BatchFailed
}

// Batch is one upload: its documents and, once extracted, its projects.
type Batch struct {
	ID        string            `json:"id"`
	UploadKey string            `json:"upload_id,omitempty"`
	Documents []string          `json:"documents"`
	Status    BatchStatus       `json:"status"`
	Projects  []Project         `json:"projects"`
	Failures  []DocumentFailure `json:"failures,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ExtractionJob is the unit of work flowing through the job queue.
type ExtractionJob struct {
	BatchID   string
	Documents []Document
	Enqueued  time.Time
}
