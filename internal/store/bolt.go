package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"mmrd/internal/mmr"
)

var nodesBucket = []byte("nodes")

// BoltStore persists node digests in a bbolt database, keyed by the
// 8-byte big-endian position.
type BoltStore struct {
	db   *bbolt.DB
	size uint64
}

// OpenBolt opens or creates the node database at the given path.
func OpenBolt(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &BoltStore{db: db}
	err = db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(nodesBucket)
		if err != nil {
			return err
		}
		s.size = uint64(bucket.Stats().KeyN)

		// Positions must be dense: the last key equals the count.
		if s.size > 0 {
			last, _ := bucket.Cursor().Last()
			if len(last) != 8 || binary.BigEndian.Uint64(last) != s.size {
				return mmr.ErrCorruptedStore
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func posKey(pos uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, pos)
	return key
}

// Append adds a digest and returns its 1-based position.
func (s *BoltStore) Append(d mmr.Digest) (uint64, error) {
	pos := s.size + 1
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(nodesBucket).Put(posKey(pos), d[:])
	})
	if err != nil {
		return 0, fmt.Errorf("put node %d: %w", pos, err)
	}
	s.size = pos
	return pos, nil
}

// Get retrieves the digest at the given position.
func (s *BoltStore) Get(pos uint64) (mmr.Digest, error) {
	if pos == 0 || pos > s.size {
		return mmr.Digest{}, mmr.ErrPositionOutOfRange
	}

	var d mmr.Digest
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(nodesBucket).Get(posKey(pos))
		if len(value) != mmr.DigestSize {
			return mmr.ErrCorruptedStore
		}
		copy(d[:], value)
		return nil
	})
	if err != nil {
		return mmr.Digest{}, err
	}
	return d, nil
}

// Size returns the total number of digests in the store.
func (s *BoltStore) Size() (uint64, error) {
	return s.size, nil
}

// Sync flushes the database file.
func (s *BoltStore) Sync() error {
	return s.db.Sync()
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
