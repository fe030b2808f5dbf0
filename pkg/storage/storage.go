// Package storage defines the filesystem abstraction the docstore engine
// persists through, plus a local-disk and an in-memory implementation.
//
// A FileSystem only needs whole-file semantics: existence checks, reads,
// writes and removals of flat names. Each call may fail independently and the
// engine decides which failures are fatal.
//
// Optional capabilities are discovered with type assertions:
//
//   - Lister enumerates names by prefix (needed for backup pruning).
//   - AtomicReplacer reports that Write replaces an existing file atomically,
//     so the engine can skip removing the canonical file before promotion.
//
// Additional backends live in subpackages (badgerfs, sqlitefs, redisfs, gcsfs).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned (possibly wrapped) when a name does not exist.
var ErrNotFound = errors.New("storage: file not found")

// FileSystem is the minimal whole-file contract consumed by the engine.
type FileSystem interface {
	Exists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
}

// Lister is implemented by backends able to enumerate stored names.
// Implementations return names sorted ascending.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// AtomicReplacer is implemented by backends whose Write atomically replaces
// existing content.
type AtomicReplacer interface {
	AtomicReplace() bool
}

// SupportsAtomicReplace reports whether fs declares atomic overwrites.
func SupportsAtomicReplace(fs FileSystem) bool {
	replacer, ok := fs.(AtomicReplacer)
	return ok && replacer.AtomicReplace()
}

// IsNotFound reports whether err signals a missing name.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
