package repository

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrStaleUser means the record changed between read and write.
	ErrStaleUser     = errors.New("user record changed concurrently")
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)
