package allocation

import "errors"

// Sentinel kinds for allocation errors.
var (
	ErrInvalidInput = errors.New("invalid allocation input")
)
