package extraction

import (
	"context"
	"fmt"

	"github.com/okian/greenalloc/internal/domain/model"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const defaultManifestConcurrency = 4

// manifest is the mapping form of a project document: either a projects list
// or a single inlined project.
type manifest struct {
	Projects            []model.ProjectRecord `yaml:"projects"`
	model.ProjectRecord `yaml:",inline"`
}

// ManifestExtractor reads YAML or JSON project manifests.
type ManifestExtractor struct {
	concurrency int
}

// NewManifestExtractor creates a manifest extractor.
func NewManifestExtractor(opts ...ManifestOption) *ManifestExtractor {
	m := &ManifestExtractor{concurrency: defaultManifestConcurrency}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type parsed struct {
	projects []model.Project
	failure  *model.DocumentFailure
}

// Extract parses every document concurrently; output follows document order.
func (m *ManifestExtractor) Extract(ctx context.Context, docs []model.Document) (Result, error) {
	if len(docs) == 0 {
		return Result{}, ErrNoDocuments
	}

	out := make([]parsed, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			projects, err := ParseManifest(doc)
			if err != nil {
				f := failure(doc, err)
				out[i].failure = &f
				return nil
			}
			out[i].projects = projects
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("manifest extraction: %w", err)
	}

	var res Result
	for _, p := range out {
		if p.failure != nil {
			res.Failures = append(res.Failures, *p.failure)
			continue
		}
		res.Projects = append(res.Projects, p.projects...)
	}
	return finish(res, len(docs))
}

// ParseManifest decodes one document. Accepted shapes: a top-level list of
// projects, a mapping with a "projects" list, or a single project mapping.
func ParseManifest(doc model.Document) ([]model.Project, error) {
	if KindOf(doc) != KindManifest {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.Name)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(doc.Data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedDocument, doc.Name, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.Name)
	}

	var records []model.ProjectRecord
	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&records); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedDocument, doc.Name, err)
		}
	case yaml.MappingNode:
		var m manifest
		if err := node.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedDocument, doc.Name, err)
		}
		switch {
		case len(m.Projects) > 0 && !m.ProjectRecord.Empty():
			return nil, fmt.Errorf("%w: %s: both a project and a projects list", ErrMalformedDocument, doc.Name)
		case len(m.Projects) > 0:
			records = m.Projects
		case !m.ProjectRecord.Empty():
			records = []model.ProjectRecord{m.ProjectRecord}
		}
	default:
		return nil, fmt.Errorf("%w: %s: unexpected top-level value", ErrMalformedDocument, doc.Name)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.Name)
	}
	projects, err := model.ProjectsFromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Name, err)
	}
	return projects, nil
}
