package auth

import "errors"

var (
	ErrEmailAlreadyRegistered = errors.New("auth: email already registered")
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrUserNotFound           = errors.New("auth: user not found")
	ErrUnauthorized           = errors.New("auth: unauthorized")
	ErrSelfDeleteForbidden    = errors.New("auth: cannot delete own account")
	ErrInvalidToken           = errors.New("auth: invalid token")
	ErrInvalidInput           = errors.New("auth: invalid input")
)
