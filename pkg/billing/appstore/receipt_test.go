package appstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/billing/appstore"
)

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func jsonHandler(t *testing.T, body map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "receipt-b64", req["receipt-data"])
		assert.Equal(t, "shared", req["password"])
		assert.Equal(t, true, req["exclude-old-transactions"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

func newReceiptClient(t *testing.T, prod, sandbox http.Handler) *appstore.Client {
	t.Helper()
	prodSrv := httptest.NewServer(prod)
	t.Cleanup(prodSrv.Close)
	sandboxURL := "http://127.0.0.1:1/unused"
	if sandbox != nil {
		sandboxSrv := httptest.NewServer(sandbox)
		t.Cleanup(sandboxSrv.Close)
		sandboxURL = sandboxSrv.URL
	}

	c, err := appstore.New(appstore.Config{
		SharedSecret:     "shared",
		VerifyURL:        prodSrv.URL,
		SandboxVerifyURL: sandboxURL,
	})
	require.NoError(t, err)
	return c
}

func TestVerifyReceipt(t *testing.T) {
	t.Parallel()

	expiry := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
	purchase := billing.AppStorePurchase{Receipt: "receipt-b64"}

	t.Run("active receipt", func(t *testing.T) {
		t.Parallel()
		c := newReceiptClient(t, jsonHandler(t, map[string]any{
			"status": 0,
			"latest_receipt_info": []map[string]any{
				{"product_id": "one_year_subscription", "expires_date_ms": ms(expiry)},
			},
		}), nil)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.Equal(t, "one_year_subscription", res.ProductID)
		assert.True(t, expiry.Equal(res.ExpiresAt))
		assert.False(t, res.IsInBillingRetryPeriod)
		assert.Equal(t, billing.StateActive, billing.Resolve(*res, time.Now()).State)
	})

	t.Run("sandbox receipt retried once", func(t *testing.T) {
		t.Parallel()
		var sandboxCalls atomic.Int32
		sandbox := jsonHandler(t, map[string]any{
			"status":      0,
			"environment": "Sandbox",
			"latest_receipt_info": []map[string]any{
				{"product_id": "one_year_subscription", "expires_date_ms": ms(expiry)},
			},
		})
		c := newReceiptClient(t,
			jsonHandler(t, map[string]any{"status": 21007}),
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sandboxCalls.Add(1)
				sandbox(w, r)
			}),
		)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.Equal(t, int32(1), sandboxCalls.Load())
		assert.Equal(t, "Sandbox", res.ProviderState)
	})

	t.Run("billing retry with grace period", func(t *testing.T) {
		t.Parallel()
		grace := time.Now().Add(3 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
		c := newReceiptClient(t, jsonHandler(t, map[string]any{
			"status": 0,
			"latest_receipt_info": []map[string]any{
				{"product_id": "one_year_subscription", "expires_date_ms": ms(time.Now().Add(-time.Hour))},
			},
			"pending_renewal_info": []map[string]any{
				{"is_in_billing_retry_period": "1", "grace_period_expires_date_ms": ms(grace)},
			},
		}), nil)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		assert.True(t, res.IsInBillingRetryPeriod)
		require.NotNil(t, res.GracePeriodExpiresAt)
		assert.True(t, grace.Equal(*res.GracePeriodExpiresAt))

		resolved := billing.Resolve(*res, time.Now())
		assert.Equal(t, billing.StateInGracePeriod, resolved.State)
		assert.True(t, grace.Equal(resolved.ExpiresAt))
	})

	t.Run("cancellation date", func(t *testing.T) {
		t.Parallel()
		cancelled := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
		c := newReceiptClient(t, jsonHandler(t, map[string]any{
			"status": 0,
			"latest_receipt_info": []map[string]any{{
				"product_id":           "one_year_subscription",
				"expires_date_ms":      ms(expiry),
				"cancellation_date_ms": ms(cancelled),
			}},
		}), nil)

		res, err := c.Verify(context.Background(), purchase)
		require.NoError(t, err)
		require.NotNil(t, res.CancellationAt)
		assert.True(t, cancelled.Equal(*res.CancellationAt))
	})

	t.Run("missing latest receipt info", func(t *testing.T) {
		t.Parallel()
		c := newReceiptClient(t, jsonHandler(t, map[string]any{"status": 0}), nil)

		_, err := c.Verify(context.Background(), purchase)
		require.Error(t, err)
		assert.ErrorIs(t, err, appstore.ErrNoReceiptInfo)
		assert.Equal(t, billing.CodeInvalidPayload, billing.CodeOf(err))
	})

	t.Run("rejected receipt", func(t *testing.T) {
		t.Parallel()
		c := newReceiptClient(t, jsonHandler(t, map[string]any{"status": 21003}), nil)

		_, err := c.Verify(context.Background(), purchase)
		assert.ErrorIs(t, err, appstore.ErrReceiptRejected)
		assert.Equal(t, billing.CodeInvalidPayload, billing.CodeOf(err))
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c, err := appstore.New(appstore.Config{VerifyURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Verify(context.Background(), purchase)
		require.Error(t, err)
		assert.Equal(t, billing.CodeConnectionFailed, billing.CodeOf(err))
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		c := newReceiptClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}), nil)

		_, err := c.Verify(context.Background(), purchase)
		assert.Equal(t, billing.CodeConnectionFailed, billing.CodeOf(err))
	})

	t.Run("missing receipt", func(t *testing.T) {
		t.Parallel()
		c, err := appstore.New(appstore.Config{})
		require.NoError(t, err)

		_, err = c.Verify(context.Background(), billing.AppStorePurchase{})
		assert.ErrorIs(t, err, appstore.ErrMissingReceipt)
		assert.ErrorIs(t, err, billing.ErrInvalidInput)
	})

	t.Run("transaction id without server api", func(t *testing.T) {
		t.Parallel()
		c, err := appstore.New(appstore.Config{})
		require.NoError(t, err)

		_, err = c.Verify(context.Background(), billing.AppStorePurchase{TransactionID: "2000000"})
		assert.ErrorIs(t, err, appstore.ErrServerAPIDisabled)
	})
}

func TestVerifyReceiptStalledResponse(t *testing.T) {
	t.Parallel()

	stalled := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":0,"latest_receipt_info":[`))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	purchase := billing.AppStorePurchase{Receipt: "receipt-b64"}

	t.Run("client reports connection failure", func(t *testing.T) {
		t.Parallel()
		c := newReceiptClient(t, stalled, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		_, err := c.Verify(ctx, purchase)
		require.Error(t, err)
		assert.Equal(t, billing.CodeConnectionFailed, billing.CodeOf(err))
	})

	t.Run("dispatcher reports connection failure", func(t *testing.T) {
		t.Parallel()
		c := newReceiptClient(t, stalled, nil)
		d := billing.NewDispatcher(billing.WithAppStore(c), billing.WithTimeout(200*time.Millisecond))

		_, err := d.Verify(context.Background(), purchase)
		require.Error(t, err)
		assert.Equal(t, billing.CodeConnectionFailed, billing.CodeOf(err))
		assert.True(t, billing.IsRetryable(err))
	})
}
