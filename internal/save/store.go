package save

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// Store persists the latest snapshot per session id in a local bbolt file,
// so a host can pick a previous session's world back up.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the snapshot store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores the snapshot under the session id, replacing any previous one.
func (s *Store) Put(sessionID string, snap *Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(sessionID), data)
	})
}

// Get loads the snapshot stored under the session id.
func (s *Store) Get(sessionID string) (*Snapshot, bool, error) {
	var data []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get([]byte(sessionID))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
