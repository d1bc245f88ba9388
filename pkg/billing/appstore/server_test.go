package appstore_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/billing/appstore"
)

type serverAPIFixture struct {
	key       *ecdsa.PrivateKey
	keyPEM    string
	prodCalls atomic.Int32
	sbCalls   atomic.Int32

	// rootPEM and signPayload switch the client to chain verification.
	rootPEM     string
	signPayload func(t *testing.T, claims jwt.MapClaims) string
}

func newServerAPIFixture(t *testing.T) *serverAPIFixture {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return &serverAPIFixture{
		key:    key,
		keyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	}
}

func (f *serverAPIFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(f.key)
	require.NoError(t, err)
	return s
}

func (f *serverAPIFixture) payload(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if f.signPayload != nil {
		return f.signPayload(t, claims)
	}
	return f.sign(t, claims)
}

// checkAuth validates the bearer token the client sends.
func (f *serverAPIFixture) checkAuth(t *testing.T, r *http.Request) {
	t.Helper()
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	tok, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		return &f.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithAudience("appstoreconnect-v1"), jwt.WithIssuer("issuer-1"))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "KEY123", tok.Header["kid"])
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "com.unicef.cboard", claims["bid"])
}

func (f *serverAPIFixture) statusBody(t *testing.T, status int, tx, renewal jwt.MapClaims) map[string]any {
	t.Helper()
	return map[string]any{
		"environment": "Production",
		"bundleId":    "com.unicef.cboard",
		"data": []map[string]any{{
			"subscriptionGroupIdentifier": "2100000",
			"lastTransactions": []map[string]any{{
				"originalTransactionId": "2000000",
				"status":                status,
				"signedTransactionInfo": f.payload(t, tx),
				"signedRenewalInfo":     f.payload(t, renewal),
			}},
		}},
	}
}

func (f *serverAPIFixture) client(t *testing.T, prod, sandbox http.HandlerFunc) *appstore.Client {
	t.Helper()
	prodSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.prodCalls.Add(1)
		f.checkAuth(t, r)
		assert.Equal(t, "/inApps/v1/subscriptions/2000000", r.URL.Path)
		prod(w, r)
	}))
	t.Cleanup(prodSrv.Close)
	sandboxSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.sbCalls.Add(1)
		f.checkAuth(t, r)
		sandbox(w, r)
	}))
	t.Cleanup(sandboxSrv.Close)

	c, err := appstore.New(appstore.Config{
		APIURL:        prodSrv.URL,
		SandboxAPIURL: sandboxSrv.URL,
		BundleID:      "com.unicef.cboard",
		KeyID:         "KEY123",
		IssuerID:      "issuer-1",
		PrivateKey:    f.keyPEM,

		RootCertificates: f.rootPEM,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestVerifyTransaction(t *testing.T) {
	t.Parallel()

	expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
	purchase := billing.AppStorePurchase{TransactionID: "2000000"}
	unexpected := func(w http.ResponseWriter, _ *http.Request) {
		t.Error("unexpected sandbox call")
		w.WriteHeader(http.StatusInternalServerError)
	}

	t.Run("active with auto renew", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, f.statusBody(t, appstore.StatusActive,
				jwt.MapClaims{"productId": "one_year_subscription", "expiresDate": expiry.UnixMilli()},
				jwt.MapClaims{"autoRenewStatus": 1},
			))
		}, unexpected)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.Equal(t, "one_year_subscription", res.ProductID)
		assert.True(t, expiry.Equal(res.ExpiresAt))
		assert.Equal(t, billing.StateActive, billing.Resolve(*res, time.Now()).State)
	})

	t.Run("active without auto renew stays active until expiry", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, f.statusBody(t, appstore.StatusActive,
				jwt.MapClaims{"productId": "one_year_subscription", "expiresDate": expiry.UnixMilli()},
				jwt.MapClaims{"autoRenewStatus": 0},
			))
		}, unexpected)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		require.NotNil(t, res.CancellationAt)
		assert.Equal(t, billing.StateActive, billing.Resolve(*res, time.Now()).State)
	})

	t.Run("grace period", func(t *testing.T) {
		t.Parallel()
		grace := time.Now().Add(5 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, f.statusBody(t, appstore.StatusGracePeriod,
				jwt.MapClaims{"productId": "one_year_subscription", "expiresDate": time.Now().Add(-time.Hour).UnixMilli()},
				jwt.MapClaims{"autoRenewStatus": 1, "isInBillingRetryPeriod": true, "gracePeriodExpiresDate": grace.UnixMilli()},
			))
		}, unexpected)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		resolved := billing.Resolve(*res, time.Now())
		assert.Equal(t, billing.StateInGracePeriod, resolved.State)
		assert.True(t, grace.Equal(resolved.ExpiresAt))
	})

	t.Run("revoked", func(t *testing.T) {
		t.Parallel()
		revoked := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, f.statusBody(t, appstore.StatusRevoked,
				jwt.MapClaims{"productId": "one_year_subscription", "expiresDate": expiry.UnixMilli(), "revocationDate": revoked.UnixMilli()},
				jwt.MapClaims{"autoRenewStatus": 0},
			))
		}, unexpected)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.Equal(t, billing.StateExpired, billing.Resolve(*res, time.Now()).State)
	})

	t.Run("falls back to sandbox", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"errorCode": 4040010, "errorMessage": "Transaction id not found."})
		}, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, f.statusBody(t, appstore.StatusActive,
				jwt.MapClaims{"productId": "one_year_subscription", "expiresDate": expiry.UnixMilli()},
				jwt.MapClaims{"autoRenewStatus": 1},
			))
		})

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.Equal(t, "one_year_subscription", res.ProductID)
		assert.Equal(t, int32(1), f.prodCalls.Load())
		assert.Equal(t, int32(1), f.sbCalls.Load())
	})

	t.Run("other api errors are rejected", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errorCode": 4000006, "errorMessage": "Invalid transaction id."})
		}, unexpected)

		_, err := c.Verify(context.Background(), purchase)
		assert.ErrorIs(t, err, appstore.ErrReceiptRejected)
		assert.Equal(t, billing.CodeInvalidPayload, billing.CodeOf(err))
	})

	t.Run("empty last transactions", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		c := f.client(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"environment": "Production", "data": []any{}})
		}, unexpected)

		_, err := c.Verify(context.Background(), purchase)
		assert.ErrorIs(t, err, appstore.ErrNoLastTransaction)
	})
}

func TestNewRejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := appstore.New(appstore.Config{
		BundleID:   "com.unicef.cboard",
		KeyID:      "KEY123",
		IssuerID:   "issuer-1",
		PrivateKey: "not a pem",
	})
	assert.ErrorIs(t, err, appstore.ErrInvalidPrivateKey)
}

// testCA is a self-signed root and a leaf it issued, standing in for the
// Apple certificate chain.
type testCA struct {
	rootPEM string
	rootDER []byte
	leafDER []byte
	leafKey *ecdsa.PrivateKey
}

func newTestCA(t *testing.T) *testCA {
	t.Helper()
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	root := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, root, root, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leaf := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test Signing"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leaf, rootCert, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)

	return &testCA{
		rootPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootDER})),
		rootDER: rootDER,
		leafDER: leafDER,
		leafKey: leafKey,
	}
}

func (ca *testCA) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["x5c"] = []string{
		base64.StdEncoding.EncodeToString(ca.leafDER),
		base64.StdEncoding.EncodeToString(ca.rootDER),
	}
	s, err := tok.SignedString(ca.leafKey)
	require.NoError(t, err)
	return s
}

func TestVerifyTransactionSignedPayloads(t *testing.T) {
	t.Parallel()

	expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
	purchase := billing.AppStorePurchase{TransactionID: "2000000"}
	unexpected := func(w http.ResponseWriter, _ *http.Request) {
		t.Error("unexpected sandbox call")
		w.WriteHeader(http.StatusInternalServerError)
	}
	respond := func(t *testing.T, f *serverAPIFixture) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, f.statusBody(t, appstore.StatusActive,
				jwt.MapClaims{"productId": "one_year_subscription", "expiresDate": expiry.UnixMilli()},
				jwt.MapClaims{"autoRenewStatus": 1},
			))
		}
	}

	t.Run("accepts payload chained to a configured root", func(t *testing.T) {
		t.Parallel()
		ca := newTestCA(t)
		f := newServerAPIFixture(t)
		f.rootPEM, f.signPayload = ca.rootPEM, ca.sign
		c := f.client(t, respond(t, f), unexpected)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.Equal(t, "one_year_subscription", res.ProductID)
		assert.True(t, expiry.Equal(res.ExpiresAt))
	})

	t.Run("rejects payload without chain", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		f.rootPEM = newTestCA(t).rootPEM
		c := f.client(t, respond(t, f), unexpected)

		_, err := c.Verify(context.Background(), purchase)
		require.Error(t, err)
		assert.ErrorIs(t, err, appstore.ErrInvalidSignedData)
		assert.ErrorIs(t, err, appstore.ErrMissingCertificateChain)
		assert.Equal(t, billing.CodeInvalidPayload, billing.CodeOf(err))
	})

	t.Run("rejects chain from another root", func(t *testing.T) {
		t.Parallel()
		f := newServerAPIFixture(t)
		f.rootPEM, f.signPayload = newTestCA(t).rootPEM, newTestCA(t).sign
		c := f.client(t, respond(t, f), unexpected)

		_, err := c.Verify(context.Background(), purchase)
		require.Error(t, err)
		assert.ErrorIs(t, err, appstore.ErrUntrustedCertificate)
		assert.Equal(t, billing.CodeInvalidPayload, billing.CodeOf(err))
	})
}

func TestNewRejectsBadRootCertificate(t *testing.T) {
	t.Parallel()

	f := newServerAPIFixture(t)
	_, err := appstore.New(appstore.Config{
		BundleID:         "com.unicef.cboard",
		KeyID:            "KEY123",
		IssuerID:         "issuer-1",
		PrivateKey:       f.keyPEM,
		RootCertificates: "not a pem",
	})
	assert.ErrorIs(t, err, appstore.ErrInvalidRootCertificate)
}
