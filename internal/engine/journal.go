package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    path        TEXT PRIMARY KEY,
    size        INTEGER NOT NULL,
    mtime_nanos INTEGER NOT NULL,
    fingerprint TEXT NOT NULL
);
`

// Journal is an optional SQLite-backed fingerprint cache. A file whose size
// and mtime are unchanged since the last run reuses its stored fingerprint
// instead of being re-hashed. Purely an optimization: a nil Journal just
// hashes everything.
type Journal struct {
	db *sql.DB
}

// OpenJournal creates or opens the fingerprint cache at dbPath.
func OpenJournal(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Lookup returns the cached fingerprint for path, valid only while size and
// mtime are unchanged.
func (j *Journal) Lookup(path string, size, mtimeNanos int64) (string, bool) {
	var fp string
	err := j.db.QueryRow(
		"SELECT fingerprint FROM fingerprints WHERE path = ? AND size = ? AND mtime_nanos = ?",
		path, size, mtimeNanos,
	).Scan(&fp)
	if err != nil {
		return "", false
	}
	return fp, true
}

// Store records the fingerprint for path at the given size and mtime.
func (j *Journal) Store(path string, size, mtimeNanos int64, fingerprint string) error {
	_, err := j.db.Exec(
		"INSERT OR REPLACE INTO fingerprints (path, size, mtime_nanos, fingerprint) VALUES (?, ?, ?, ?)",
		path, size, mtimeNanos, fingerprint,
	)
	return err
}
