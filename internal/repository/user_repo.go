package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"identity/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrDuplicateEmail = errors.New("email already taken")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) DB() *gorm.DB { return r.db }

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Preload("Roles").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Preload("Roles").First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Model(u).Updates(map[string]any{
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"phone":      u.Phone,
	}).Error
}

func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&domain.User{}, id)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Preload("Roles").
		Order("id").Limit(limit).Offset(offset).
		Find(&users).Error
	return users, err
}

// RecordLogin updates the last-login timestamp and installs a fresh refresh
// token pair in a single UPDATE, superseding any previous token.
func (r *UserRepository) RecordLogin(ctx context.Context, id int64, at time.Time, refreshHash string, refreshExpiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"last_login_at":            at,
		"refresh_token_hash":       refreshHash,
		"refresh_token_expires_at": refreshExpiresAt,
	}).Error
}

// StoreRefreshToken overwrites the account's refresh token pair.
func (r *UserRepository) StoreRefreshToken(ctx context.Context, id int64, refreshHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"refresh_token_hash":       refreshHash,
		"refresh_token_expires_at": expiresAt,
	}).Error
}

// RotateRefreshToken swaps the stored token pair only if the presented hash
// still matches and has not expired. Zero rows updated means another refresh
// (or a logout) got there first and the presented token is no longer valid.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id int64, oldHash, newHash string, expiresAt, now time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND refresh_token_hash = ? AND refresh_token_expires_at > ?", id, oldHash, now).
		Updates(map[string]any{
			"refresh_token_hash":       newHash,
			"refresh_token_expires_at": expiresAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id int64) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"refresh_token_hash":       nil,
		"refresh_token_expires_at": nil,
	})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).
		Update("is_active", active)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// UpdatePassword replaces the credential and invalidates the outstanding
// refresh and reset tokens in the same UPDATE.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":            passwordHash,
		"refresh_token_hash":       nil,
		"refresh_token_expires_at": nil,
		"reset_token_hash":         nil,
		"reset_token_expires_at":   nil,
	}).Error
}

func (r *UserRepository) SetResetToken(ctx context.Context, id int64, resetHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"reset_token_hash":       resetHash,
		"reset_token_expires_at": expiresAt,
	}).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite (local/dev) has no typed error here
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
