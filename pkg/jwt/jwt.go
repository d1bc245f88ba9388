// Package jwt authenticates API callers with HS256 bearer tokens issued by the
// account service. A token is accepted only when it carries a user id and an
// email and its issuer claim matches the configured issuer.
package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// RoleAdmin marks administrators in the role claim.
const RoleAdmin = "admin"

// Claims are the application claims of an access token. The issuer travels
// in a custom "issuer" claim rather than "iss".
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Issuer string `json:"issuer"`
	Role   string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// IsAdmin reports whether the caller has the admin role.
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Service signs and verifies tokens.
type Service struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for exp and nbf checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service for the given signing key and expected issuer.
func New(signingKey, issuer string, opts ...Option) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: []byte(signingKey), issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate signs claims. A missing issuer is filled with the configured one.
func (s *Service) Generate(claims Claims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = s.issuer
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse verifies the token and returns its claims. Tokens without exp are
// accepted, matching tokens issued by the account service.
func (s *Service) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims,
		func(*jwtlib.Token) (any, error) { return s.key, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Email == "" {
		return nil, ErrMissingIdentity
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidIssuer
	}
	return claims, nil
}
