package auth

import "errors"

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrEmailNotFound      = errors.New("email does not exist")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrAccountNotVerified = errors.New("account is not verified")
	ErrAlreadyActive      = errors.New("account is already active")
	ErrInvalidLink        = errors.New("this link is not valid")
	ErrUnauthorized       = errors.New("not authorised")
	// ErrTokenExpired is kept distinct from ErrUnauthorized so refresh
	// can tell clients to re-login while logout treats it as a no-op.
	ErrTokenExpired = errors.New("token expired")
)
