package blacklist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const urlBucket = "urls"

// Entry is one blacklisted URL. URLs are compared by exact trimmed match;
// no scheme, slash, or query normalization is performed. That is part of the
// contract with the protocol, not something to fix here.
type Entry struct {
	URL       string    `json:"url"`
	AddedBy   string    `json:"added_by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// URLStore is the authoritative exact-match store behind the bloom filter.
type URLStore struct {
	db *bbolt.DB
}

// OpenURLStore opens the URL database under dataDir.
func OpenURLStore(dataDir string) (*URLStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "urls.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open url database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(urlBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize url bucket: %v", err)
	}

	return &URLStore{db: db}, nil
}

// Close closes the database connection
func (s *URLStore) Close() error {
	return s.db.Close()
}

// Put records a URL, keeping the original entry when it already exists.
// Returns whether a new entry was created.
func (s *URLStore) Put(url, addedBy, reason string) (bool, error) {
	created := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(urlBucket))
		if b.Get([]byte(url)) != nil {
			return nil
		}
		data, err := json.Marshal(Entry{
			URL:       url,
			AddedBy:   addedBy,
			Reason:    reason,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		created = true
		return b.Put([]byte(url), data)
	})
	return created, err
}

// Has reports exact membership.
func (s *URLStore) Has(url string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(urlBucket)).Get([]byte(url)) != nil
		return nil
	})
	return found, err
}

// Remove deletes a URL, reporting whether it was present.
func (s *URLStore) Remove(url string) (bool, error) {
	removed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(urlBucket))
		if b.Get([]byte(url)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(url))
	})
	return removed, err
}

// All returns every entry in key order.
func (s *URLStore) All() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(urlBucket)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
