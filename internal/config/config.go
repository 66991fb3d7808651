package config

const (
	// DefaultStoreFile is the weave store created next to the scanned tree
	// unless -f points elsewhere.
	DefaultStoreFile = "surefile.weave.gz"

	// DefaultCacheFile holds the advisory digest cache.
	DefaultCacheFile = ".surefile.cache.sqlite3"

	// IgnoreFile lists git-style patterns excluded from scans.
	IgnoreFile = ".surefile-ignore"
)

const (
	DefaultHash = "xxh3" // "xxh3" | "sha256"
)

// LockRetries bounds how often an append waits for the writer lock before
// giving up with a contention error.
const LockRetries = 5

// DefaultIgnoredFiles are always excluded so the tool does not flag its own
// state files as drift.
var DefaultIgnoredFiles = []string{DefaultStoreFile, DefaultCacheFile}
