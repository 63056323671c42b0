package storage

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"mailfan/models"

	"github.com/google/uuid"
)

// normalizeName is the comparison key for label names: surrounding whitespace
// trimmed, case folded. The stored name keeps its original casing.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Labels retrieves all labels in the user's namespace, oldest first.
func (s *Store) Labels(user string) ([]models.Label, error) {
	var labels []models.Label

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, _ := userBucketIn(tx, labelBucket, user)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var label models.Label
			if err := json.Unmarshal(v, &label); err != nil {
				return err
			}
			labels = append(labels, label)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(labels, func(i, j int) bool {
		if labels[i].CreatedAt.Equal(labels[j].CreatedAt) {
			return labels[i].Name < labels[j].Name
		}
		return labels[i].CreatedAt.Before(labels[j].CreatedAt)
	})
	return labels, nil
}

// GetLabel retrieves a specific label from the user's namespace.
func (s *Store) GetLabel(user, id string) (*models.Label, error) {
	var label models.Label

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, _ := userBucketIn(tx, labelBucket, user)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &label)
	})
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// CreateLabel creates a new label in the user's namespace. Fails with
// ErrDuplicateName when a case-insensitive match already exists there; the
// same name in another user's namespace is unrelated.
func (s *Store) CreateLabel(user, name string) (*models.Label, error) {
	label := models.Label{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucketIn(tx, labelBucket, user)
		if err != nil {
			return err
		}
		if dup, err := findByName(b, label.Name); err != nil {
			return err
		} else if dup != nil {
			return ErrDuplicateName
		}

		data, err := json.Marshal(label)
		if err != nil {
			return err
		}
		return b.Put([]byte(label.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// RenameLabel changes a label's display name, keeping its identifier.
func (s *Store) RenameLabel(user, id, name string) (*models.Label, error) {
	var label models.Label

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucketIn(tx, labelBucket, user)
		if err != nil {
			return err
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}

		if dup, err := findByName(b, name); err != nil {
			return err
		} else if dup != nil && dup.ID != id {
			return ErrDuplicateName
		}

		label.Name = strings.TrimSpace(name)
		updated, err := json.Marshal(label)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// DeleteLabel removes a label from the user's namespace. Mail copies that
// still reference the identifier keep the dangling reference; it simply no
// longer resolves to a name.
func (s *Store) DeleteLabel(user, id string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucketIn(tx, labelBucket, user)
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) == nil {
			return nil
		}
		deleted = true
		return b.Delete([]byte(id))
	})
	return deleted, err
}

// FindLabelByName looks a label up by case-insensitive name in the user's
// namespace. Returns ErrNotFound when no label matches.
func (s *Store) FindLabelByName(user, name string) (*models.Label, error) {
	var found *models.Label

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, _ := userBucketIn(tx, labelBucket, user)
		if b == nil {
			return ErrNotFound
		}
		var err error
		found, err = findByName(b, name)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func findByName(b *bbolt.Bucket, name string) (*models.Label, error) {
	want := normalizeName(name)
	var found *models.Label
	err := b.ForEach(func(k, v []byte) error {
		var label models.Label
		if err := json.Unmarshal(v, &label); err != nil {
			return err
		}
		if found == nil && normalizeName(label.Name) == want {
			found = &label
		}
		return nil
	})
	return found, err
}
