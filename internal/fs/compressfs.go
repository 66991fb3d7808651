package fs

import (
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// CompressedFS wraps another FS and gzips file content transparently.
// The record format above it never sees the compression.
type CompressedFS struct {
	underlying FS
}

func NewCompressedFS(base FS) *CompressedFS {
	return &CompressedFS{underlying: base}
}

func (c *CompressedFS) ReadFile(path string) ([]byte, error) {
	raw, err := c.underlying.ReadFile(path)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

func (c *CompressedFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return c.underlying.WriteFile(path, buf.Bytes(), perm)
}

// Lock files are not compressed.
func (c *CompressedFS) CreateExclusive(path string, data []byte, perm os.FileMode) error {
	return c.underlying.CreateExclusive(path, data, perm)
}

func (c *CompressedFS) Remove(path string) error { return c.underlying.Remove(path) }

func (c *CompressedFS) Exists(path string) bool { return c.underlying.Exists(path) }
