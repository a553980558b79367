package model

import "time"

// User represents a registered account.
//
// The password hash is stored on the record but never serialized in API
// responses. Users are created on registration and never updated or deleted.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Hash      string    `json:"-"` // Never expose password hash
	CreatedAt time.Time `json:"createdAt"`
}
