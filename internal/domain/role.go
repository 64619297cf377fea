package domain

import "time"

// Role is a named grant attached to users and carried on access tokens as a
// plain string tag.
type Role struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name" validate:"required,min=2,max=100"`
	Description string    `json:"description" db:"description" validate:"max=500"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultRoleName is assigned to self-registered users.
const DefaultRoleName = "user"
