package identity

import "errors"

var (
	ErrUnauthorized      = errors.New("identity: unauthorized")
	ErrMissingToken      = errors.New("identity: missing bearer token")
	ErrInvalidToken      = errors.New("identity: invalid token")
	ErrInvalidClaims     = errors.New("identity: token claims lack a user id or email")
	ErrMissingSigningKey = errors.New("identity: missing jwt secret")
	ErrMissingAuthURL    = errors.New("identity: missing auth server url")
	ErrUnknownMode       = errors.New("identity: unknown auth mode")
	ErrAuthServer        = errors.New("identity: auth server unavailable")
)
