package repository

import (
	"context"
	"errors"

	"credential-service/internal/domain"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
}
