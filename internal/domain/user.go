package domain

import "time"

type User struct {
	ID           int64      `json:"id" db:"id"`
	TenantID     int64      `json:"tenant_id" db:"tenant_id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsLocked     bool       `json:"is_locked" db:"is_locked"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`

	// Roles is populated by the repository from the user_roles join; it is
	// not a column on the users table.
	Roles []string `json:"roles" db:"-"`
}

// Username is the display name carried in access-token claims: the local
// part of the email when one is present.
func (u *User) Username() string {
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}
