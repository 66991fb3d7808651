// Package weave stores every snapshot of a tree in a single append-only
// file using interleaved per-record version tags, so any historical version
// renders with one linear pass and unchanged trees cost no extra space.
package weave

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/keshon/surefile/internal/config"
	"github.com/keshon/surefile/internal/fs"
	"github.com/keshon/surefile/internal/snapshot"
)

// Store is a handle on one weave file. Renders are read-only; Append is the
// single mutation path and holds an exclusive lock file for its duration,
// committing through an atomic replace so concurrent readers see either the
// pre- or post-append state.
type Store struct {
	path        string
	fsys        fs.FS
	lockRetries int
	lockDelay   time.Duration
}

// Open returns a handle on the weave file at path. The file need not exist
// yet; the first Append creates it. Pass a CompressedFS-wrapped filesystem
// to keep the file gzipped on disk.
func Open(path string, fsys fs.FS) *Store {
	return &Store{
		path:        path,
		fsys:        fsys,
		lockRetries: config.LockRetries,
		lockDelay:   100 * time.Millisecond,
	}
}

// Delta summarizes what one append changed.
type Delta struct {
	Version  int
	Inserted int
	Deleted  int
}

// LatestVersion returns the highest stored version, or 0 for an empty store.
func (s *Store) LatestVersion() (int, error) {
	if !s.fsys.Exists(s.path) {
		return 0, nil
	}
	w, err := s.load()
	if err != nil {
		return 0, err
	}
	return w.latest(), nil
}

// ListVersions returns every stored version in order.
func (s *Store) ListVersions() ([]VersionInfo, error) {
	if !s.fsys.Exists(s.path) {
		return nil, nil
	}
	w, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]VersionInfo(nil), w.versions...), nil
}

// ResolveVersion maps a selector to a version number: "latest" (or empty),
// "prior", a literal version number, or a key=value tag match where the
// newest tagged version wins.
func (s *Store) ResolveVersion(selector string) (int, error) {
	latest, err := s.LatestVersion()
	if err != nil {
		return 0, err
	}

	switch selector {
	case "", "latest":
		if latest == 0 {
			return 0, errors.New("store is empty")
		}
		return latest, nil
	case "prior":
		if latest < 2 {
			return 0, errors.Errorf("no prior version, store holds %d", latest)
		}
		return latest - 1, nil
	}

	if n, err := strconv.Atoi(selector); err == nil {
		return n, nil
	}

	if key, value, ok := strings.Cut(selector, "="); ok {
		versions, err := s.ListVersions()
		if err != nil {
			return 0, err
		}
		for i := len(versions) - 1; i >= 0; i-- {
			if versions[i].Tags[key] == value {
				return versions[i].Version, nil
			}
		}
		return 0, errors.Errorf("no version tagged %s=%s", key, value)
	}

	return 0, errors.Errorf("version selector %q not understood", selector)
}

// Render reconstructs the snapshot stored as version. Records are filtered
// by their tag pair, so this is a single scan of the file.
func (s *Store) Render(version int) (*snapshot.Snapshot, error) {
	if !s.fsys.Exists(s.path) {
		return nil, &VersionNotFoundError{Version: version, Latest: 0}
	}
	w, err := s.load()
	if err != nil {
		return nil, err
	}
	return s.render(w, version)
}

func (s *Store) render(w *weaveFile, version int) (*snapshot.Snapshot, error) {
	if version < 1 || version > w.latest() {
		return nil, &VersionNotFoundError{Version: version, Latest: w.latest()}
	}

	var entries []snapshot.Entry
	for i := range w.records {
		if w.records[i].activeAt(version) {
			entries = append(entries, w.records[i].Entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return snapshot.PathLess(entries[i].Path, entries[j].Path)
	})
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Path == entries[i].Path {
			return nil, &CorruptStoreError{
				Path:   s.path,
				Line:   recordLine(w, entries[i].Path, version),
				Reason: "duplicate active path " + entries[i].Path,
			}
		}
	}

	return &snapshot.Snapshot{
		Version:    version,
		CapturedAt: w.versions[version-1].Time,
		Entries:    entries,
	}, nil
}

// recordLine finds the decode position of the second active record for a
// duplicated path, for diagnostics.
func recordLine(w *weaveFile, path string, version int) int {
	seen := false
	for i := range w.records {
		if w.records[i].Path == path && w.records[i].activeAt(version) {
			if seen {
				return w.records[i].line
			}
			seen = true
		}
	}
	return 0
}

// Append stores snap as a new version: the latest version is rendered and
// diffed against snap by an ordered merge-join on path, and only the
// inserted and deleted records change the file. Appending an identical
// snapshot produces an empty delta but still advances the version.
func (s *Store) Append(snap *snapshot.Snapshot, tags map[string]string) (Delta, error) {
	release, err := s.acquireLock()
	if err != nil {
		return Delta{}, err
	}
	defer release()

	w := &weaveFile{}
	if s.fsys.Exists(s.path) {
		if w, err = s.load(); err != nil {
			return Delta{}, err
		}
	}

	// Work on a sorted, validated copy; the caller's snapshot stays
	// untouched.
	next := &snapshot.Snapshot{Entries: append([]snapshot.Entry(nil), snap.Entries...)}
	next.Sort()
	if err := next.Validate(); err != nil {
		return Delta{}, errors.Wrap(err, "snapshot not appendable")
	}

	newVersion := w.latest() + 1

	// Active records of the latest version, in path order, with their
	// positions in the record stream so deletions can be tagged in place.
	type active struct {
		entry *snapshot.Entry
		idx   int
	}
	var old []active
	for i := range w.records {
		if w.records[i].activeAt(w.latest()) {
			old = append(old, active{entry: &w.records[i].Entry, idx: i})
		}
	}
	sort.SliceStable(old, func(i, j int) bool {
		return snapshot.PathLess(old[i].entry.Path, old[j].entry.Path)
	})

	delta := Delta{Version: newVersion}
	insert := func(e snapshot.Entry) {
		w.records = append(w.records, record{Entry: e, Ins: newVersion})
		delta.Inserted++
	}
	remove := func(a active) {
		w.records[a.idx].Del = newVersion
		delta.Deleted++
	}

	i, j := 0, 0
	for i < len(old) && j < len(next.Entries) {
		oe, ne := old[i], &next.Entries[j]
		switch {
		case snapshot.PathLess(oe.entry.Path, ne.Path):
			remove(oe)
			i++
		case snapshot.PathLess(ne.Path, oe.entry.Path):
			insert(*ne)
			j++
		default:
			if !oe.entry.Same(ne) {
				// Attribute change is a delete plus an insert; a kind
				// change (file replaced by directory) falls out the same
				// way.
				remove(oe)
				insert(*ne)
			}
			i++
			j++
		}
	}
	for ; i < len(old); i++ {
		remove(old[i])
	}
	for ; j < len(next.Entries); j++ {
		insert(next.Entries[j])
	}

	captured := snap.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}
	w.versions = append(w.versions, VersionInfo{
		Version: newVersion,
		Time:    captured,
		Tags:    tags,
	})

	data, err := encode(w)
	if err != nil {
		return Delta{}, errors.Wrap(err, "encoding weave file")
	}
	if err := s.fsys.WriteFile(s.path, data, 0o644); err != nil {
		return Delta{}, errors.Wrapf(err, "writing weave file %s", s.path)
	}

	log.WithFields(log.Fields{
		"store":    s.path,
		"version":  newVersion,
		"inserted": delta.Inserted,
		"deleted":  delta.Deleted,
	}).Debug("appended version")
	return delta, nil
}

func (s *Store) load() (*weaveFile, error) {
	data, err := s.fsys.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading weave file %s", s.path)
	}
	return decode(s.path, data)
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// acquireLock takes the single-writer lock via exclusive create, retrying a
// bounded number of times before reporting contention.
func (s *Store) acquireLock() (func(), error) {
	for attempt := 0; ; attempt++ {
		err := s.fsys.CreateExclusive(s.lockPath(), []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644)
		if err == nil {
			return func() {
				if rerr := s.fsys.Remove(s.lockPath()); rerr != nil {
					log.WithError(rerr).Warn("failed to remove lock file")
				}
			}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "creating lock file %s", s.lockPath())
		}
		if attempt >= s.lockRetries {
			return nil, &LockContentionError{Path: s.path}
		}
		time.Sleep(s.lockDelay)
	}
}
