package fs

import (
	"os"
)

// FS abstracts the store's filesystem operations so it can run against the
// real disk, a compressed wrapper, or an in-memory implementation in tests.
// ReadFile and WriteFile move whole buffers; implementations guarantee the
// handle is flushed and released on every path, including failure.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	// CreateExclusive creates path with the given content, failing if it
	// already exists. Used for lock files.
	CreateExclusive(path string, data []byte, perm os.FileMode) error
	Remove(path string) error
	Exists(path string) bool
}
