package extraction

import (
	"context"
	"fmt"

	"github.com/okian/greenalloc/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// Router sends each document to the backend for its kind. Manifest projects
// come first in the result, followed by PDF-derived projects.
type Router struct {
	manifests Extractor
	pdfs      Extractor
}

// NewRouter creates a router over a manifest backend and a PDF backend.
func NewRouter(manifests, pdfs Extractor) *Router {
	return &Router{manifests: manifests, pdfs: pdfs}
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, docs []model.Document) (Result, error) {
	if len(docs) == 0 {
		return Result{}, ErrNoDocuments
	}

	var manifests, pdfs []model.Document
	var unsupported []model.DocumentFailure
	for _, doc := range docs {
		switch KindOf(doc) {
		case KindManifest:
			manifests = append(manifests, doc)
		case KindPDF:
			pdfs = append(pdfs, doc)
		default:
			unsupported = append(unsupported, failure(doc, fmt.Errorf("%w: %s (%s)", ErrUnsupportedDocument, doc.Name, doc.ContentType)))
		}
	}

	var fromManifests, fromPDFs Result
	g, gctx := errgroup.WithContext(ctx)
	if len(manifests) > 0 {
		g.Go(func() error {
			var err error
			fromManifests, err = r.run(gctx, r.manifests, manifests)
			return err
		})
	}
	if len(pdfs) > 0 {
		g.Go(func() error {
			var err error
			fromPDFs, err = r.run(gctx, r.pdfs, pdfs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{
		Projects: append(fromManifests.Projects, fromPDFs.Projects...),
		Failures: append(append(unsupported, fromManifests.Failures...), fromPDFs.Failures...),
	}
	return finish(res, len(docs))
}

// run calls a backend, keeping its partial failures and only propagating
// cancellation.
func (r *Router) run(ctx context.Context, backend Extractor, docs []model.Document) (Result, error) {
	res, err := backend.Extract(ctx, docs)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("extraction cancelled: %w", ctx.Err())
	}
	if len(res.Failures) == 0 {
		for _, doc := range docs {
			res.Failures = append(res.Failures, failure(doc, err))
		}
	}
	return res, nil
}
