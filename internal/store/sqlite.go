// Package store provides durable node-store backends for the range
// engine beyond the flat file in internal/mmr: a SQLite database and a
// bbolt database. Both implement mmr.Store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"mmrd/internal/mmr"
)

// Schema for the node store. Positions are 1-based and append-only.
const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    position    INTEGER PRIMARY KEY,
    digest      BLOB NOT NULL
);
`

// SQLiteStore persists node digests in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	size uint64
}

// OpenSQLite opens or creates the node database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// load determines the current size and checks the position sequence is
// dense.
func (s *SQLiteStore) load() error {
	var count, maxPos sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*), MAX(position) FROM nodes`).Scan(&count, &maxPos)
	if err != nil {
		return fmt.Errorf("load node count: %w", err)
	}
	if count.Int64 != maxPos.Int64 {
		return mmr.ErrCorruptedStore
	}
	s.size = uint64(count.Int64)
	return nil
}

// Append adds a digest and returns its 1-based position.
func (s *SQLiteStore) Append(d mmr.Digest) (uint64, error) {
	pos := s.size + 1
	if _, err := s.db.Exec(`INSERT INTO nodes (position, digest) VALUES (?, ?)`, pos, d[:]); err != nil {
		return 0, fmt.Errorf("insert node %d: %w", pos, err)
	}
	s.size = pos
	return pos, nil
}

// Get retrieves the digest at the given position.
func (s *SQLiteStore) Get(pos uint64) (mmr.Digest, error) {
	if pos == 0 || pos > s.size {
		return mmr.Digest{}, mmr.ErrPositionOutOfRange
	}

	var blob []byte
	err := s.db.QueryRow(`SELECT digest FROM nodes WHERE position = ?`, pos).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return mmr.Digest{}, mmr.ErrCorruptedStore
	}
	if err != nil {
		return mmr.Digest{}, fmt.Errorf("select node %d: %w", pos, err)
	}
	if len(blob) != mmr.DigestSize {
		return mmr.Digest{}, mmr.ErrCorruptedStore
	}

	var d mmr.Digest
	copy(d[:], blob)
	return d, nil
}

// Size returns the total number of digests in the store.
func (s *SQLiteStore) Size() (uint64, error) {
	return s.size, nil
}

// Sync is satisfied by SQLite's own journaling.
func (s *SQLiteStore) Sync() error {
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
