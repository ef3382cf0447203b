package users

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotHeld  = errors.New("role not held by user")
)
