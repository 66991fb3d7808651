// Package compare classifies the differences between two snapshots.
package compare

import (
	"github.com/keshon/surefile/internal/snapshot"
)

// ChangeKind classifies one path's difference between two snapshots.
type ChangeKind string

const (
	Added           ChangeKind = "added"
	Removed         ChangeKind = "removed"
	ContentChanged  ChangeKind = "content_changed"
	MetadataChanged ChangeKind = "metadata_changed"
	Unchanged       ChangeKind = "unchanged"

	// Unreadable flags paths the scanner had to downgrade; not a
	// difference verdict, but surfaced so a report never hides them.
	Unreadable ChangeKind = "unreadable"
)

// Change is one classified path.
type Change struct {
	Path string
	Kind ChangeKind
}

// Report lists exactly one change per path in the union of both snapshots,
// in canonical path order.
type Report struct {
	Changes []Change
}

// Changed returns the report without its unchanged entries.
func (r Report) Changed() []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Kind != Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// Snapshots diffs old against new by an ordered merge-join on path, the
// same join the store uses when appending, exposed here so any two rendered
// versions can be compared without touching the store.
func Snapshots(old, new *snapshot.Snapshot) Report {
	var report Report
	oldEntries, newEntries := old.Entries, new.Entries

	i, j := 0, 0
	for i < len(oldEntries) && j < len(newEntries) {
		oe, ne := &oldEntries[i], &newEntries[j]
		switch {
		case snapshot.PathLess(oe.Path, ne.Path):
			report.Changes = append(report.Changes, Change{Path: oe.Path, Kind: Removed})
			i++
		case snapshot.PathLess(ne.Path, oe.Path):
			report.Changes = append(report.Changes, Change{Path: ne.Path, Kind: Added})
			j++
		default:
			report.Changes = append(report.Changes, Change{Path: ne.Path, Kind: classify(oe, ne)})
			i++
			j++
		}
	}
	for ; i < len(oldEntries); i++ {
		report.Changes = append(report.Changes, Change{Path: oldEntries[i].Path, Kind: Removed})
	}
	for ; j < len(newEntries); j++ {
		report.Changes = append(report.Changes, Change{Path: newEntries[j].Path, Kind: Added})
	}
	return report
}

// classify ranks content over metadata: when both differ the path reports
// content_changed.
func classify(old, new *snapshot.Entry) ChangeKind {
	if new.Kind == snapshot.KindUnreadable || old.Kind == snapshot.KindUnreadable {
		return Unreadable
	}
	if !old.SameContent(new) {
		return ContentChanged
	}
	if !old.Same(new) {
		return MetadataChanged
	}
	return Unchanged
}
