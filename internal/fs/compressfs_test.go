package fs_test

import (
	"bytes"
	"testing"

	"github.com/keshon/surefile/internal/fs"
)

func TestCompressedFS_RoundTrip(t *testing.T) {
	c := fs.NewCompressedFS(fs.NewMemoryFS())

	content := bytes.Repeat([]byte("weave weave weave "), 200)
	if err := c.WriteFile("store.gz", content, 0o644); err != nil {
		t.Fatal(err)
	}

	read, err := c.ReadFile("store.gz")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(read, content) {
		t.Fatal("round trip mismatch")
	}
}

func TestCompressedFS_ActuallyCompresses(t *testing.T) {
	base := fs.NewMemoryFS()
	c := fs.NewCompressedFS(base)

	content := bytes.Repeat([]byte("aaaaaaaaaaaaaaaa"), 1000)
	if err := c.WriteFile("store.gz", content, 0o644); err != nil {
		t.Fatal(err)
	}

	raw, err := base.ReadFile("store.gz")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) >= len(content) {
		t.Fatalf("expected compressed size < %d, got %d", len(content), len(raw))
	}
}

func TestCompressedFS_ReadGarbage(t *testing.T) {
	base := fs.NewMemoryFS()
	base.WriteFile("store.gz", []byte("not gzip"), 0o644)

	c := fs.NewCompressedFS(base)
	if _, err := c.ReadFile("store.gz"); err == nil {
		t.Fatal("expected error reading non-gzip data")
	}
}

func TestCompressedFS_LockPassThrough(t *testing.T) {
	base := fs.NewMemoryFS()
	c := fs.NewCompressedFS(base)

	if err := c.CreateExclusive("store.gz.lock", []byte("pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Lock files bypass compression.
	raw, err := base.ReadFile("store.gz.lock")
	if err != nil || string(raw) != "pid" {
		t.Fatalf("lock file not passed through: %q, %v", raw, err)
	}
}
