package model

import "time"

// User is an operator allowed to log in.
type User struct {
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Active       bool      `json:"active"`
}
