package users

import (
	"context"

	"identity/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id int64) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	ClearRefreshToken(ctx context.Context, id int64) (bool, error)
}

type RoleRepository interface {
	Grant(ctx context.Context, userID int64, name string) error
	Revoke(ctx context.Context, userID int64, name string) error
	RolesOf(ctx context.Context, userID int64) ([]domain.Role, error)
}
