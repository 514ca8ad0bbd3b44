package service

import "errors"

// Sentinel kinds returned by Service methods.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrInvalidUpload = errors.New("invalid upload")
	ErrBackpressure  = errors.New("extraction queue is full")
	ErrBatchNotFound = errors.New("batch not found")
	ErrBatchNotReady = errors.New("batch not ready")
	ErrBatchFailed   = errors.New("batch extraction failed")
)
