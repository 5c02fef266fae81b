// Package source collects raw documents for ingestion from local
// directories and GitHub repositories.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ragkit/ragserver/internal/ingest"
)

// textExtensions are the file types treated as ingestable documents.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// ReadDir walks a directory tree and returns every text document under it.
// The document Source is the path relative to root, so re-running ingestion
// over the same tree replaces rather than duplicates.
func ReadDir(root string) ([]ingest.RawDocument, error) {
	var docs []ingest.RawDocument

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, ingest.RawDocument{
			Source: filepath.ToSlash(rel),
			Text:   string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return docs, nil
}
