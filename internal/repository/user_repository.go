package repository

import (
	"context"
	"errors"

	"credential-service/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail returns the user with Roles populated, or ErrUserNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// RecordLogin stamps last_login_at. Best effort; a failure must not fail
	// the login itself.
	RecordLogin(ctx context.Context, id int64) error

	GetRoles(ctx context.Context, userID int64) ([]string, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
}
