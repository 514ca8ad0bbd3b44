package smoke

import "errors"

var (
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus is returned for any other unexpected HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrBatchFailed is returned when extraction fails for the uploaded batch.
	ErrBatchFailed = errors.New("batch failed")
	// ErrCheckFailed is returned when a response violates an allocation rule.
	ErrCheckFailed = errors.New("check failed")
)
