package appstore

import (
	"crypto/ecdsa"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const audience = "appstoreconnect-v1"

// tokenSource signs App Store Server API bearer tokens and reuses each one
// until shortly before it expires.
type tokenSource struct {
	keyID    string
	issuerID string
	bundleID string
	ttl      time.Duration
	key      *ecdsa.PrivateKey
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(cfg Config) (*tokenSource, error) {
	pem := []byte(cfg.PrivateKey)
	if len(pem) == 0 {
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, errors.Join(ErrInvalidPrivateKey, err)
		}
		pem = data
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, errors.Join(ErrInvalidPrivateKey, err)
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 || ttl > 20*time.Minute {
		ttl = 19 * time.Minute
	}
	return &tokenSource{
		keyID:    cfg.KeyID,
		issuerID: cfg.IssuerID,
		bundleID: cfg.BundleID,
		ttl:      ttl,
		key:      key,
		now:      time.Now,
	}, nil
}

// Token returns a valid signed token.
func (ts *tokenSource) Token() (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	if ts.token != "" && now.Add(time.Minute).Before(ts.expires) {
		return ts.token, nil
	}

	expires := now.Add(ts.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": ts.issuerID,
		"iat": now.Unix(),
		"exp": expires.Unix(),
		"aud": audience,
		"bid": ts.bundleID,
	})
	tok.Header["kid"] = ts.keyID

	signed, err := tok.SignedString(ts.key)
	if err != nil {
		return "", err
	}
	ts.token = signed
	ts.expires = expires
	return signed, nil
}
