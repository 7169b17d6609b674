package auth

import "errors"

// Domain errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
	ErrForbidden    = errors.New("auth: insufficient permissions")
)
