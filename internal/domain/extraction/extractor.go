// Package extraction turns uploaded documents into ordered Project records.
//
// Extractors may be slow; every implementation honours ctx cancellation and
// reports per-document failures instead of failing the whole batch.
package extraction

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/okian/greenalloc/internal/domain/model"
)

// Result carries the projects that could be extracted and the documents that could not.
type Result struct {
	Projects []model.Project
	Failures []model.DocumentFailure
}

// Extractor produces projects from a set of documents.
type Extractor interface {
	// Extract returns an error only when ctx is done, docs is empty, or no
	// document yielded a project. The Result is populated in every case.
	Extract(ctx context.Context, docs []model.Document) (Result, error)
}

// Kind classifies a document for routing.
type Kind int

// Document kinds.
const (
	KindUnknown Kind = iota
	KindManifest
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// KindOf classifies by content type first, then by file extension.
func KindOf(doc model.Document) Kind {
	mediaType, _, err := mime.ParseMediaType(doc.ContentType)
	if err != nil {
		mediaType = ""
	}
	switch mediaType {
	case "application/pdf":
		return KindPDF
	case "application/json", "text/json", "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return KindManifest
	case "", "application/octet-stream", "text/plain":
		// fall through to the extension
	default:
		return KindUnknown
	}
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".pdf":
		return KindPDF
	case ".json", ".yaml", ".yml":
		return KindManifest
	default:
		return KindUnknown
	}
}

func failure(doc model.Document, err error) model.DocumentFailure {
	return model.DocumentFailure{Document: doc.Name, Reason: err.Error()}
}

// finish turns an all-failed result into ErrExtractionFailed.
func finish(res Result, total int) (Result, error) {
	if len(res.Projects) == 0 {
		return res, fmt.Errorf("%w: %d of %d documents failed", ErrExtractionFailed, len(res.Failures), total)
	}
	return res, nil
}
