package users

import (
	"context"
	"errors"

	"identity/internal/domain"

	"gorm.io/gorm"
)

// Service covers the managed account surface: lookups, profile updates,
// role membership, activation and deletion.
type Service struct {
	users UserRepository
	roles RoleRepository
}

func NewService(users UserRepository, roles RoleRepository) *Service {
	return &Service{users: users, roles: roles}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, page, limit int) ([]domain.User, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.List(ctx, limit, (page-1)*limit)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the account for good. Disabling via Deactivate is the
// normal path; this is the administrative hard delete.
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) GrantRole(ctx context.Context, id int64, role string) (*domain.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.roles.Grant(ctx, id, role); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) RevokeRole(ctx context.Context, id int64, role string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.HasRole(role) {
		return nil, ErrRoleNotHeld
	}
	if err := s.roles.Revoke(ctx, id, role); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, true)
}

// Deactivate soft-disables the account and drops its refresh token so a
// disabled account cannot rotate its way back in.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.setActive(ctx, id, false); err != nil {
		return err
	}
	_, err := s.users.ClearRefreshToken(ctx, id)
	return err
}

func (s *Service) setActive(ctx context.Context, id int64, active bool) error {
	found, err := s.users.SetActive(ctx, id, active)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}
