// Package ragerr defines the error kinds the retrieval engine propagates,
// per the classification in spec §7: Io, Embedder, Corrupt, Config, and
// Cancelled. Callers distinguish kinds with errors.Is against the sentinel
// values below; wrapped context travels with fmt.Errorf's %w the same way
// the rest of the engine wraps errors.
package ragerr

import (
	"errors"
	"fmt"
)

var (
	// ErrIo marks a filesystem or permission failure reading source or
	// writing indices.
	ErrIo = errors.New("io error")

	// ErrEmbedder marks an HTTP failure, a non-numeric response, a shape
	// mismatch surviving pad/truncate, or a repeated timeout.
	ErrEmbedder = errors.New("embedder error")

	// ErrCorrupt marks an index file present but unparseable or
	// internally inconsistent.
	ErrCorrupt = errors.New("corrupt index")

	// ErrConfig marks invalid weights, non-positive k, or a dimension
	// mismatch on add.
	ErrConfig = errors.New("invalid configuration")

	// ErrCancelled marks cooperative cancellation observed mid-run.
	ErrCancelled = errors.New("cancelled")
)

// Wrap attaches kind to err via %w so errors.Is(result, kind) holds, and
// folds in msg for context the way the rest of the engine wraps errors.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, kind)
	}
	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}
