package fs_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/keshon/surefile/internal/fs"
)

func TestOSFS_WriteReadFile(t *testing.T) {
	o := fs.NewOSFS()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	content := []byte("hello")
	if err := o.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	read, err := o.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(read, content) {
		t.Fatalf("expected %q, got %q", content, read)
	}
}

func TestOSFS_WriteFileReplacesAtomically(t *testing.T) {
	o := fs.NewOSFS()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	if err := o.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := o.WriteFile(path, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	read, _ := o.ReadFile(path)
	if string(read) != "new" {
		t.Fatalf("expected replaced content, got %q", read)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file in dir, got %d", len(entries))
	}
}

func TestOSFS_CreateExclusive(t *testing.T) {
	o := fs.NewOSFS()
	path := filepath.Join(t.TempDir(), "lock")

	if err := o.CreateExclusive(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := o.CreateExclusive(path, []byte("2"), 0o644); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected exist error, got %v", err)
	}
}

func TestOSFS_Exists(t *testing.T) {
	o := fs.NewOSFS()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	if o.Exists(path) {
		t.Fatal("file should not exist yet")
	}
	if err := o.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !o.Exists(path) {
		t.Fatal("file should exist")
	}
}
