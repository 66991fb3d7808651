package weave

import "fmt"

// CorruptStoreError reports a weave file that fails its reconstruction
// invariant: a malformed or truncated record, tags out of order, or a
// duplicate active path. Line is the 1-based position of the offending
// record in the decoded stream, or 0 when no single line is at fault.
type CorruptStoreError struct {
	Path   string
	Line   int
	Reason string
}

func (e *CorruptStoreError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt weave store %s: line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("corrupt weave store %s: %s", e.Path, e.Reason)
}

// VersionNotFoundError reports a render of a version outside [1, latest].
type VersionNotFoundError struct {
	Version int
	Latest  int
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %d not in store (have 1..%d)", e.Version, e.Latest)
}

// LockContentionError reports that an append could not take the writer lock
// within its bounded retries.
type LockContentionError struct {
	Path string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("weave store %s: writer lock held by another process", e.Path)
}
