// internal/domain/auth/entity.go
package auth

import (
	"time"
)

// User is the registered identity. Nothing mutates it after registration.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"hashed_password"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated caller resolved from a bearer token
type Principal struct {
	UserID   int64
	Username string
	TokenID  string
	Expires  time.Time
}
