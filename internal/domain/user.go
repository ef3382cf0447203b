package domain

import "time"

const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// User is an account row. The password is never stored raw, only its bcrypt
// hash; the same goes for the refresh and reset tokens (SHA-256 + pepper).
type User struct {
	ID           int64  `json:"id" gorm:"primaryKey"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone,omitempty"`
	IsActive     bool   `json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Single active refresh token per account: rotating or logging out
	// overwrites or clears this pair, both columns always updated together.
	RefreshTokenHash      *string    `json:"-" gorm:"size:64;index"`
	RefreshTokenExpiresAt *time.Time `json:"-"`

	ResetTokenHash      *string    `json:"-" gorm:"size:64"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	Roles []Role `json:"roles" gorm:"many2many:user_roles;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a name-only tag, many-to-many with users.
type Role struct {
	ID   int64  `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:64;not null"`
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}
