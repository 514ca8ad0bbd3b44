package extraction

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrNoDocuments         = errors.New("no documents supplied")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrEmptyDocument       = errors.New("document contains no projects")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrExtractionFailed    = errors.New("extraction produced no projects")
)
