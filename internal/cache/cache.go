// Package cache is an advisory sqlite-backed digest cache: a scan may skip
// rehashing a file whose size and mtime are unchanged. It is never a
// correctness dependency; every failure here degrades to a cache miss.
package cache

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS digests (
	path   TEXT NOT NULL PRIMARY KEY,
	size   INTEGER NOT NULL,
	mtime  INTEGER NOT NULL,
	digest TEXT NOT NULL
);`

// Cache satisfies scan.DigestCache on top of a sqlite file.
type Cache struct {
	db *sql.DB
}

func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening digest cache %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "initializing digest cache %s", path)
	}
	return &Cache{db: db}, nil
}

// Lookup returns the cached digest when size and mtime both still match.
func (c *Cache) Lookup(path string, size, mtime int64) (string, bool) {
	var (
		gotSize, gotMTime int64
		digest            string
	)
	err := c.db.QueryRow(
		`SELECT size, mtime, digest FROM digests WHERE path = ?`, path,
	).Scan(&gotSize, &gotMTime, &digest)
	switch {
	case err == sql.ErrNoRows:
		return "", false
	case err != nil:
		log.WithError(err).Debug("digest cache lookup failed")
		return "", false
	case gotSize != size || gotMTime != mtime:
		return "", false
	}
	return digest, true
}

// Store records a freshly computed digest.
func (c *Cache) Store(path string, size, mtime int64, digest string) {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO digests (path, size, mtime, digest) VALUES (?, ?, ?, ?)`,
		path, size, mtime, digest,
	)
	if err != nil {
		log.WithError(err).Debug("digest cache store failed")
	}
}

func (c *Cache) Close() error {
	return c.db.Close()
}
