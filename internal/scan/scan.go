// Package scan walks a filesystem subtree and produces a snapshot of it.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/keshon/surefile/internal/hash"
	"github.com/keshon/surefile/internal/progress"
	"github.com/keshon/surefile/internal/snapshot"
	"github.com/keshon/surefile/internal/util"
)

// DigestCache lets a scan skip rehashing files whose size and mtime are
// unchanged. It is purely advisory: scans with and without it produce
// identical snapshots.
type DigestCache interface {
	Lookup(path string, size, mtime int64) (digest string, ok bool)
	Store(path string, size, mtime int64, digest string)
}

// Scanner builds a snapshot from a live tree. Regular files are hashed
// through a worker pool; everything else records metadata only.
type Scanner struct {
	Root     string
	Provider hash.Provider
	Workers  int         // <= 0 means one per CPU
	Cache    DigestCache // optional
	Progress bool        // render a spinner while hashing
}

// Scan walks the tree in canonical order and returns the completed snapshot.
// Per-entry failures, including a permission-denied subdirectory, downgrade
// that entry to unreadable; the scan aborts only when a readable directory
// fails to enumerate.
func (s *Scanner) Scan() (*snapshot.Snapshot, error) {
	captured := time.Now()

	entries, err := s.walk()
	if err != nil {
		return nil, err
	}

	if err := s.hashFiles(entries); err != nil {
		return nil, err
	}

	snap := &snapshot.Snapshot{CapturedAt: captured, Entries: entries}
	if err := snap.Validate(); err != nil {
		return nil, errors.Wrap(err, "scan produced an invalid snapshot")
	}

	log.WithFields(log.Fields{"root": s.Root, "entries": len(entries)}).
		Debug("scan complete")
	return snap, nil
}

// walk collects the entry skeleton in walk order. File digests are filled in
// afterwards by hashFiles.
func (s *Scanner) walk() ([]snapshot.Entry, error) {
	matcher := NewIgnore(s.Root)
	var entries []snapshot.Entry

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != s.Root && d != nil && d.IsDir() && errors.Is(err, fs.ErrPermission) {
				// ReadDir failed on a directory already recorded; mark it
				// unreadable and skip the subtree.
				rel, rerr := filepath.Rel(s.Root, path)
				if rerr != nil {
					return rerr
				}
				downgradeDir(entries, filepath.ToSlash(rel))
				log.WithField("path", rel).WithError(err).Debug("directory unreadable, entry downgraded")
				return filepath.SkipDir
			}
			// Root lstat or a readable directory failed to enumerate.
			// Non-local, abort.
			return errors.Wrapf(err, "enumerating %q", path)
		}
		if path == s.Root {
			return nil
		}

		rel, rerr := filepath.Rel(s.Root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)

		if matcher.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		entries = append(entries, s.buildEntry(rel, path, d))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// downgradeDir marks the already-collected entry for rel as unreadable. The
// walk emits a directory before attempting to read it, so the entry is
// present when its enumeration fails.
func downgradeDir(entries []snapshot.Entry, rel string) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Path == rel {
			entries[i].Kind = snapshot.KindUnreadable
			return
		}
	}
}

func (s *Scanner) buildEntry(rel, path string, d fs.DirEntry) snapshot.Entry {
	e := snapshot.Entry{Path: rel}

	switch {
	case d.IsDir():
		e.Kind = snapshot.KindDir
	case d.Type()&fs.ModeSymlink != 0:
		e.Kind = snapshot.KindSymlink
	case d.Type().IsRegular():
		e.Kind = snapshot.KindFile
	default:
		e.Kind = snapshot.KindSpecial
	}

	fi, err := d.Info()
	if err != nil {
		log.WithField("path", rel).WithError(err).Debug("stat failed, entry downgraded")
		e.Kind = snapshot.KindUnreadable
		return e
	}

	e.Size = fi.Size()
	e.MTime = fi.ModTime().UnixNano()
	e.Mode = uint32(fi.Mode().Perm())
	e.UID, e.GID = ownership(fi)

	if e.Kind == snapshot.KindSymlink {
		target, err := os.Readlink(path)
		if err != nil {
			log.WithField("path", rel).WithError(err).Debug("readlink failed, entry downgraded")
			e.Kind = snapshot.KindUnreadable
			return e
		}
		e.Target = target
	}
	if e.Kind == snapshot.KindDir {
		e.Size = 0 // directory sizes are filesystem noise
	}

	return e
}

// hashFiles fills in digests for regular files, consulting the cache first
// and fanning the misses out over the worker pool. Results come back in
// submission order, so the snapshot is deterministic for any pool size.
func (s *Scanner) hashFiles(entries []snapshot.Entry) error {
	var pending []int // entry indices needing a hash, in walk order
	for i := range entries {
		e := &entries[i]
		if e.Kind != snapshot.KindFile {
			continue
		}
		if s.Cache != nil {
			if digest, ok := s.Cache.Lookup(e.Path, e.Size, e.MTime); ok {
				e.Digest = digest
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = util.WorkerCount()
	}

	var bar *progress.Tracker
	if s.Progress {
		bar = progress.NewTracker(len(pending), "Hashing files")
		defer bar.Finish()
	}

	pool := hash.NewPool(s.Provider, workers)
	tasks := make(chan hash.Task, workers*2)
	results := pool.Run(tasks)

	go func() {
		for seq, idx := range pending {
			tasks <- hash.Task{Seq: seq, Path: filepath.Join(s.Root, filepath.FromSlash(entries[idx].Path))}
		}
		close(tasks)
	}()

	for res := range results {
		e := &entries[pending[res.Seq]]
		if res.Err != nil {
			log.WithField("path", e.Path).WithError(res.Err).Warn("hash failed, entry downgraded")
			e.Kind = snapshot.KindUnreadable
			e.Digest = ""
		} else {
			e.Digest = res.Digest
			if s.Cache != nil {
				s.Cache.Store(e.Path, e.Size, e.MTime, res.Digest)
			}
		}
		if bar != nil {
			bar.Increment()
			bar.AddBytes(e.Size)
		}
	}
	return nil
}
