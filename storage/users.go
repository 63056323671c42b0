package storage

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"mailfan/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser provisions a mailbox. Fails with ErrExists when the address is
// already known. Registration proper lives outside this service; this is the
// directory the delivery path checks recipients against.
func (s *Store) CreateUser(email, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now(),
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(userBucket))
		if b.Get([]byte(email)) != nil {
			return ErrExists
		}
		data, err := json.Marshal(struct {
			models.User
			PasswordHash string `json:"password_hash"`
		}{user, user.PasswordHash})
		if err != nil {
			return err
		}
		return b.Put([]byte(email), data)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by email address.
func (s *Store) GetUser(email string) (*models.User, error) {
	var stored struct {
		models.User
		PasswordHash string `json:"password_hash"`
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(userBucket)).Get([]byte(email))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return nil, err
	}

	user := stored.User
	user.PasswordHash = stored.PasswordHash
	return &user, nil
}

// UserExists reports whether the address is a known mailbox.
func (s *Store) UserExists(email string) (bool, error) {
	exists := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket([]byte(userBucket)).Get([]byte(email)) != nil
		return nil
	})
	return exists, err
}

// VerifyPassword checks a password against the stored hash.
func (s *Store) VerifyPassword(email, password string) error {
	user, err := s.GetUser(email)
	if err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
}

// SeedUsers provisions the configured mailboxes, skipping ones that exist.
func (s *Store) SeedUsers(emails []string) error {
	for _, email := range emails {
		if _, err := s.CreateUser(email, uuid.New().String()); err != nil && err != ErrExists {
			return err
		}
	}
	return nil
}
