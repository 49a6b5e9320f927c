package auth

import "errors"

var (
	ErrDuplicateAccount   = errors.New("account with this email already exists")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUnknownSession     = errors.New("unknown refresh session")
	ErrMissingAccessToken = errors.New("access token is required")
	ErrInvalidAccessToken = errors.New("access token is invalid")

	// ErrSessionInvalid covers both revoked and expired sessions; callers cannot tell which.
	ErrSessionInvalid = errors.New("refresh session expired or revoked")
)
