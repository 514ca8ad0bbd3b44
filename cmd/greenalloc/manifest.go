package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/greenalloc/internal/domain/extraction"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/pkg/logger"
)

// loadProjects reads every manifest file and returns their projects in file
// order. Files that fail to parse are logged and skipped; no projects at all
// is an error.
func loadProjects(ctx context.Context, files []string) ([]model.Project, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one --file is required")
	}
	docs := make([]model.Document, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, model.Document{Name: filepath.Base(path), Data: data})
	}

	res, err := extraction.NewManifestExtractor().Extract(ctx, docs)
	for _, f := range res.Failures {
		logger.Get().Warn(ctx, "skipping document", logger.String("document", f.Document), logger.String("reason", f.Reason))
	}
	if err != nil {
		return nil, err
	}
	return res.Projects, nil
}
