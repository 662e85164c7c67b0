// Package ragdata holds the filesystem contract shared by the BM25 and
// vector indices: both persist under <project_root>/.terminal_helper/rag-data/
// (spec §6) using atomic temp-file-then-rename writes, the same pattern
// project-cortex's internal/cache uses for its metadata.json.
package ragdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/google/uuid"
)

// Dir is the fixed rag-data directory name under a project root (spec §6).
const Dir = "rag-data"

// RootDir joins the project root with the .terminal_helper/rag-data path.
func RootDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".terminal_helper", Dir)
}

// EnsureDir creates the rag-data directory if it does not already exist.
func EnsureDir(projectRoot string) (string, error) {
	dir := RootDir(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ragerr.Wrap(ragerr.ErrIo, "creating rag-data directory", err)
	}
	return dir, nil
}

// AtomicWrite writes data to path via a uuid-suffixed temp file in the
// same directory, then renames it into place, so readers never observe a
// partially written snapshot.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ragerr.Wrap(ragerr.ErrIo, "creating snapshot directory", err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return ragerr.Wrap(ragerr.ErrIo, "writing temp snapshot", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ragerr.Wrap(ragerr.ErrIo, "renaming snapshot into place", err)
	}
	return nil
}
