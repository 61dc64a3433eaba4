package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Destination is where an export is sent.
type Destination interface {
	// Write stores one complete JSONL export, replacing the previous one.
	Write(ctx context.Context, data []byte) error
}

// FileDestination writes exports to a local path.
type FileDestination struct {
	path string
}

// NewFileDestination returns a destination that writes to path.
func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

// Write replaces the file atomically through a temp file in the same
// directory.
func (d *FileDestination) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("rename to %s: %w", d.path, err)
	}
	return nil
}
