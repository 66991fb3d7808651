package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind classifies a filesystem entry.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
	KindSpecial Kind = "special"

	// KindUnreadable marks an entry the scanner could not stat or hash.
	// It carries no digest and whatever metadata was available.
	KindUnreadable Kind = "unreadable"
)

// Entry records one filesystem object: metadata plus, for regular files,
// a content digest. Paths are slash-separated and relative to the scan root.
type Entry struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Size   int64  `json:"size,omitempty"`
	MTime  int64  `json:"mtime,omitempty"` // unix nanoseconds
	Mode   uint32 `json:"mode,omitempty"`  // permission bits
	UID    uint32 `json:"uid"`
	GID    uint32 `json:"gid"`
	Target string `json:"target,omitempty"` // symlink destination
	Digest string `json:"digest,omitempty"` // regular files only
}

// Same reports whether two entries agree in every attribute.
func (e *Entry) Same(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return *e == *other
}

// SameContent reports whether two entries carry the same kind and digest.
// For symlinks the target stands in for content.
func (e *Entry) SameContent(other *Entry) bool {
	if e.Kind != other.Kind {
		return false
	}
	if e.Kind == KindSymlink {
		return e.Target == other.Target
	}
	return e.Digest == other.Digest
}

// PathLess orders paths component-wise, which matches the depth-first walk
// order (directories before their children, siblings by name). A plain string
// compare would order "a.b" before "a/c" even though the walk emits the
// contents of "a" first.
func PathLess(a, b string) bool {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

// Snapshot is the complete state of a tree at one scan: entries in canonical
// path order, a store-assigned version number, and the capture time.
// Snapshots are immutable once built.
type Snapshot struct {
	Version    int       `json:"version"`
	CapturedAt time.Time `json:"captured_at"`
	Entries    []Entry   `json:"entries"`
}

// Sort puts entries into canonical path order.
func (s *Snapshot) Sort() {
	sort.SliceStable(s.Entries, func(i, j int) bool {
		return PathLess(s.Entries[i].Path, s.Entries[j].Path)
	})
}

// Validate checks the ordering invariant, rejects duplicate paths, and
// requires every nested entry's parent directory to be present. A downgraded
// directory still counts as a parent.
func (s *Snapshot) Validate() error {
	dirs := make(map[string]bool)
	for i := range s.Entries {
		e := &s.Entries[i]
		if i > 0 {
			prev := s.Entries[i-1].Path
			if prev == e.Path {
				return errors.Errorf("duplicate path %q in snapshot", e.Path)
			}
			if !PathLess(prev, e.Path) {
				return errors.Errorf("snapshot entries out of order: %q before %q", prev, e.Path)
			}
		}
		if idx := strings.LastIndexByte(e.Path, '/'); idx >= 0 {
			if !dirs[e.Path[:idx]] {
				return errors.Errorf("entry %q has no parent directory in snapshot", e.Path)
			}
		}
		if e.Kind == KindDir || e.Kind == KindUnreadable {
			dirs[e.Path] = true
		}
	}
	return nil
}

// SameTree reports whether two snapshots describe identical trees, ignoring
// version number and capture time.
func (s *Snapshot) SameTree(other *Snapshot) bool {
	if len(s.Entries) != len(other.Entries) {
		return false
	}
	for i := range s.Entries {
		if s.Entries[i] != other.Entries[i] {
			return false
		}
	}
	return true
}
