// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// DirectoryConflictError reports a non-empty extraction directory when the
// policy neither preserves nor deletes its contents.
type DirectoryConflictError struct {
	Dir string
}

func (e *DirectoryConflictError) Error() string {
	return fmt.Sprintf("extraction directory %s is not empty: pass -d to delete its contents or --keep-archives to preserve them", e.Dir)
}

// PrepareDir creates dir when missing. A non-empty dir is kept, emptied, or
// rejected with *DirectoryConflictError according to policy.
func PrepareDir(dir string, policy types.ConflictPolicy, log *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating extraction directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading extraction directory: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	switch policy {
	case types.ConflictPreserve:
		log.Info("keeping existing files", zap.String("dir", dir), zap.Int("entries", len(entries)))
		return nil
	case types.ConflictDelete:
		log.Info("deleting existing contents", zap.String("dir", dir), zap.Int("entries", len(entries)))
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("clearing extraction directory: %w", err)
			}
		}
		return nil
	case types.ConflictError, "":
		return &DirectoryConflictError{Dir: dir}
	default:
		return fmt.Errorf("unknown conflict policy %q", policy)
	}
}
