package models

import "time"

// Label is a user-scoped tag. IDs are unique within and across namespaces;
// the same display name in two users' namespaces yields two distinct labels.
type Label struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
