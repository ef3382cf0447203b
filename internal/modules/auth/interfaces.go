package auth

import (
	"context"
	"log"
	"time"

	"identity/internal/domain"
)

// UserRepositoryInterface — only the methods the auth service uses
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	RecordLogin(ctx context.Context, id int64, at time.Time, refreshHash string, refreshExpiresAt time.Time) error
	StoreRefreshToken(ctx context.Context, id int64, refreshHash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, id int64, oldHash, newHash string, expiresAt, now time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id int64) (bool, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetResetToken(ctx context.Context, id int64, resetHash string, expiresAt time.Time) error
}

// RoleRepositoryInterface — role membership as seen from registration
type RoleRepositoryInterface interface {
	Grant(ctx context.Context, userID int64, name string) error
}

// Mailer is the delivery boundary for password-reset tokens. The default
// implementation only logs; wiring a real sender is a deployment concern.
type Mailer interface {
	SendPasswordReset(email, token string) error
}

type LogMailer struct{}

func (LogMailer) SendPasswordReset(email, token string) error {
	log.Printf("password reset requested for %s (delivery not configured)", email)
	return nil
}
