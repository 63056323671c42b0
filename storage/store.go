package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	labelBucket   = "labels"    // nested: user email -> label id -> label
	mailboxBucket = "mailboxes" // nested: user email -> seq -> mail copy
	mailIndex     = "mail_index"
	userBucket    = "users"
)

// Sentinel errors shared by all stores.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrExists        = errors.New("already exists")
)

// Store manages mail, label, and user persistence using BoltDB. Label and
// mailbox data live in nested per-user buckets so nothing owned by one user
// is ever reachable through another user's namespace.
type Store struct {
	db *bbolt.DB
}

// Open creates a new store instance backed by a database file under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "mailfan.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Initialize buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{labelBucket, mailboxBucket, mailIndex, userBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %v", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// userBucketIn returns (creating if needed) the per-user nested bucket.
func userBucketIn(tx *bbolt.Tx, top, user string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(top))
	if tx.Writable() {
		return b.CreateBucketIfNotExists([]byte(user))
	}
	if nested := b.Bucket([]byte(user)); nested != nil {
		return nested, nil
	}
	return nil, nil
}
