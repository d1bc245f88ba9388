package appstore

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// payloadVerifier decodes the signed transaction and renewal payloads of the
// Server API. With roots configured, each payload must carry an x5c chain
// ending in one of them and be signed by the chain's leaf. Without roots the
// payload is decoded as is; it was received over TLS in answer to a request
// authenticated with the app's own key.
type payloadVerifier struct {
	roots *x509.CertPool
}

func newPayloadVerifier(cfg Config) (*payloadVerifier, error) {
	data := []byte(cfg.RootCertificates)
	if len(data) == 0 && cfg.RootCertificatesFile != "" {
		var err error
		if data, err = os.ReadFile(cfg.RootCertificatesFile); err != nil {
			return nil, errors.Join(ErrInvalidRootCertificate, err)
		}
	}
	if len(data) == 0 {
		return &payloadVerifier{}, nil
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w: no PEM certificates found", ErrInvalidRootCertificate)
	}
	return &payloadVerifier{roots: pool}, nil
}

func (v *payloadVerifier) decode(signed string, claims jwt.Claims) error {
	if v.roots == nil {
		_, _, err := jwt.NewParser().ParseUnverified(signed, claims)
		return err
	}
	_, err := jwt.ParseWithClaims(signed, claims, v.leafKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return err
}

// leafKey verifies the x5c chain of tok and returns the leaf public key.
func (v *payloadVerifier) leafKey(tok *jwt.Token) (any, error) {
	raw, ok := tok.Header["x5c"].([]any)
	if !ok || len(raw) == 0 {
		return nil, ErrMissingCertificateChain
	}
	certs := make([]*x509.Certificate, 0, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			return nil, ErrMissingCertificateChain
		}
		der, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Join(ErrUntrustedCertificate, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, errors.Join(ErrUntrustedCertificate, err)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, errors.Join(ErrUntrustedCertificate, err)
	}
	key, ok := certs[0].PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: leaf key is not ECDSA", ErrUntrustedCertificate)
	}
	return key, nil
}
