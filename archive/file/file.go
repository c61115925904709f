// Package file implements archive.Writer as one JSON file per plan, the
// literal non-normative wording of spec.md §6.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fractalhq/orcha/archive"
)

// Writer writes one JSON file per archived plan under a directory.
type Writer struct {
	dir string
}

var _ archive.Writer = (*Writer)(nil)

// New builds a Writer rooted at dir. The directory is created on first
// write, not at construction, so a misconfigured path fails the write
// rather than construction.
func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// WritePlan marshals rec as indented JSON to <dir>/<run_id>.json.
func (w *Writer) WritePlan(_ context.Context, rec archive.Record) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("archive/file: mkdir %s: %w", w.dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("archive/file: marshal plan %s: %w", rec.RunID, err)
	}

	path := filepath.Join(w.dir, rec.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive/file: write %s: %w", path, err)
	}
	return nil
}
