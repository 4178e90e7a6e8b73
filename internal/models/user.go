package models

import "time"

// User is an authenticated identity. The ledger holds non-owning
// references to users and never mutates them.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"` // unique
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
