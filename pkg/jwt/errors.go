package jwt

import "errors"

var (
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrMissingToken      = errors.New("jwt: missing token")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrInvalidIssuer     = errors.New("jwt: unexpected issuer")
	ErrMissingIdentity   = errors.New("jwt: token has no user id or email")
)
