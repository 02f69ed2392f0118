package apperrors

import (
	"errors"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrWeakPassword       = errors.New("password is too weak")

	ErrInvalidRefreshToken = errors.New("refresh token is invalid")
	ErrRefreshTokenExpired = errors.New("refresh token is expired")
	ErrInvalidAccessToken  = errors.New("access token is invalid")

	ErrUnauthenticated = errors.New("unauthenticated")
)
