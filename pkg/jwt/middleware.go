package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc extracts a raw token from a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// MiddlewareConfig configures the authentication middleware.
type MiddlewareConfig struct {
	Service   *Service
	Extractor TokenExtractorFunc                                      // defaults to BearerTokenExtractor
	Skip      func(r *http.Request) bool                              // bypass authentication
	OnError   func(w http.ResponseWriter, r *http.Request, err error) // defaults to 403
}

// Middleware authenticates requests with bearer tokens.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: service})
}

// MiddlewareWithConfig authenticates requests and stores the claims in the
// request context. Unauthenticated requests are rejected with 403.
func MiddlewareWithConfig(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Service == nil {
		panic("jwt: Service is required")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = BearerTokenExtractor
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			raw, err := cfg.Extractor(r)
			if err != nil {
				cfg.OnError(w, r, err)
				return
			}
			claims, err := cfg.Service.Parse(raw)
			if err != nil {
				cfg.OnError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
