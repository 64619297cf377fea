package repository

import (
	"context"
	"errors"

	"credential-service/internal/domain"
)

var ErrTenantNotFound = errors.New("tenant not found")

type TenantRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}
