package repository

import (
	"context"

	"identity/internal/domain"

	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Ensure creates the role if it does not exist yet. Idempotent.
func (r *RoleRepository) Ensure(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).
		Where(domain.Role{Name: name}).
		FirstOrCreate(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Grant assigns the role to the user, creating the role lazily. Granting an
// already-held role is a no-op.
func (r *RoleRepository) Grant(ctx context.Context, userID int64, name string) error {
	role, err := r.Ensure(ctx, name)
	if err != nil {
		return err
	}
	user := domain.User{ID: userID}
	return r.db.WithContext(ctx).Model(&user).Association("Roles").Append(role)
}

func (r *RoleRepository) Revoke(ctx context.Context, userID int64, name string) error {
	var role domain.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	user := domain.User{ID: userID}
	return r.db.WithContext(ctx).Model(&user).Association("Roles").Delete(&role)
}

func (r *RoleRepository) RolesOf(ctx context.Context, userID int64) ([]domain.Role, error) {
	var roles []domain.Role
	user := domain.User{ID: userID}
	err := r.db.WithContext(ctx).Model(&user).Association("Roles").Find(&roles)
	return roles, err
}
