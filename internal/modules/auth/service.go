package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"
	"unicode"

	"identity/internal/domain"
	jwtsvc "identity/internal/pkg/jwt"
	"identity/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type jwtService interface {
	Generate(userID int64, email string, roles []string) (string, time.Time, error)
	ParseExpired(token string) (*jwtsvc.Claims, error)
}

// Service contains the session orchestration: verify credentials, issue
// tokens, persist rotation state.
type Service struct {
	users              UserRepositoryInterface
	roles              RoleRepositoryInterface
	jwt                jwtService
	mailer             Mailer
	refreshTokenPepper string
	refreshTTL         time.Duration
	resetTTL           time.Duration
}

// SessionResult is what register/login/refresh hand back to the transport.
type SessionResult struct {
	User            *domain.User
	AccessToken     string
	RefreshToken    string
	TokenExpiration time.Time
}

func NewService(
	users UserRepositoryInterface,
	roles RoleRepositoryInterface,
	jwt jwtService,
	mailer Mailer,
	refreshTokenPepper string,
	refreshTTL time.Duration,
	resetTTL time.Duration,
) *Service {
	return &Service{
		users:              users,
		roles:              roles,
		jwt:                jwt,
		mailer:             mailer,
		refreshTokenPepper: refreshTokenPepper,
		refreshTTL:         refreshTTL,
		resetTTL:           resetTTL,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*SessionResult, error) {
	if reasons := validatePassword(req.Password); len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hashedPassword,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// unique index is the arbiter under concurrent registration
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	if err := s.roles.Grant(ctx, user.ID, domain.RoleUser); err != nil {
		return nil, err
	}
	user.Roles = []domain.Role{{Name: domain.RoleUser}}

	return s.issueSession(ctx, user, time.Now().UTC(), false)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*SessionResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// absent, inactive and wrong password all answer the same way
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	result, err := s.issueSession(ctx, user, now, true)
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return result, nil
}

// RefreshToken rotates the session pair. The expired access token proves the
// caller once held a signed token for this account; the opaque refresh token
// proves possession of the paired server-side secret. Both are required.
func (s *Service) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*SessionResult, error) {
	claims, err := s.jwt.ParseExpired(req.AccessToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}

	now := time.Now().UTC()
	accessToken, expiresAt, err := s.jwt.Generate(user.ID, user.Email, user.RoleNames())
	if err != nil {
		return nil, err
	}
	newRaw, newHash, err := generateOpaqueToken(s.refreshTokenPepper)
	if err != nil {
		return nil, err
	}

	oldHash := hashTokenWithPepper(req.RefreshToken, s.refreshTokenPepper)
	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, oldHash, newHash, now.Add(s.refreshTTL), now)
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, ErrInvalidRefreshToken
	}

	return &SessionResult{
		User:            user,
		AccessToken:     accessToken,
		RefreshToken:    newRaw,
		TokenExpiration: expiresAt,
	}, nil
}

// Logout clears the stored refresh pair. The access token itself stays valid
// until its own expiry; there is no revocation list.
func (s *Service) Logout(ctx context.Context, userID int64) (bool, error) {
	return s.users.ClearRefreshToken(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if reasons := validatePassword(req.NewPassword); len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}

	hashed, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	// also drops the outstanding refresh token, forcing re-login once the
	// current access token runs out
	return s.users.UpdatePassword(ctx, userID, hashed)
}

// ForgotPassword never reveals whether the email exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	raw, hash, err := generateOpaqueToken(s.refreshTokenPepper)
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, hash, time.Now().UTC().Add(s.resetTTL)); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(user.Email, raw); err != nil {
		log.Printf("reset mail delivery failed for user %d: %v", user.ID, err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	now := time.Now().UTC()
	if user.ResetTokenHash == nil || user.ResetTokenExpiresAt == nil || !user.ResetTokenExpiresAt.After(now) {
		return ErrInvalidResetToken
	}
	if hashTokenWithPepper(req.Token, s.refreshTokenPepper) != *user.ResetTokenHash {
		return ErrInvalidResetToken
	}

	if reasons := validatePassword(req.NewPassword); len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}

	hashed, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hashed)
}

func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// issueSession mints an access token, generates a fresh refresh token and
// persists it on the account, superseding any previous one.
func (s *Service) issueSession(ctx context.Context, user *domain.User, now time.Time, recordLogin bool) (*SessionResult, error) {
	accessToken, expiresAt, err := s.jwt.Generate(user.ID, user.Email, user.RoleNames())
	if err != nil {
		return nil, err
	}

	refreshRaw, refreshHash, err := generateOpaqueToken(s.refreshTokenPepper)
	if err != nil {
		return nil, err
	}

	refreshExpiresAt := now.Add(s.refreshTTL)
	if recordLogin {
		err = s.users.RecordLogin(ctx, user.ID, now, refreshHash, refreshExpiresAt)
	} else {
		err = s.users.StoreRefreshToken(ctx, user.ID, refreshHash, refreshExpiresAt)
	}
	if err != nil {
		return nil, err
	}

	return &SessionResult{
		User:            user,
		AccessToken:     accessToken,
		RefreshToken:    refreshRaw,
		TokenExpiration: expiresAt,
	}, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func validatePassword(password string) []string {
	var reasons []string
	if len(password) < minPasswordLength {
		reasons = append(reasons, "password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "password must contain an uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "password must contain a lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "password must contain a digit")
	}
	return reasons
}

func generateOpaqueToken(pepper string) (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	hash = hashTokenWithPepper(raw, pepper)
	return raw, hash, nil
}

func hashTokenWithPepper(raw, pepper string) string {
	sum := sha256.Sum256([]byte(raw + pepper))
	return hex.EncodeToString(sum[:])
}
