package models

import "time"

// User is a known mailbox. Registration and token issuance live outside this
// service; the directory exists so delivery can reject unknown recipients.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
