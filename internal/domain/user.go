package domain

import (
	"time"

	"github.com/realqkqk123fr/temp-backend/internal/security"
)

// User is a registered account with its profile
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // never serialized
	Age          int       `json:"age" db:"age"`
	Height       int       `json:"height" db:"height"`
	Weight       int       `json:"weight" db:"weight"`
	Habit        string    `json:"habit" db:"habit"`
	Preference   string    `json:"preference" db:"preference"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Identity projects the account onto the security principal
func (u *User) Identity() *security.Identity {
	id := u.ID
	return &security.Identity{ID: &id, Username: u.Username, Email: u.Email}
}
