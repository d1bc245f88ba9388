package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

func TestParsePlatform(t *testing.T) {
	t.Parallel()

	p, err := billing.ParsePlatform("android-playstore")
	require.NoError(t, err)
	assert.Equal(t, billing.PlatformAndroidPlaystore, p)

	_, err = billing.ParsePlatform("windows-store")
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrUnknownPlatform)
	assert.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestParsePurchase(t *testing.T) {
	t.Parallel()

	t.Run("android from top level fields", func(t *testing.T) {
		t.Parallel()
		p, err := billing.ParsePurchase(billing.PlatformAndroidPlaystore, map[string]any{
			"productId":     "one_year_subscription",
			"purchaseToken": "token-1",
		})
		require.NoError(t, err)
		assert.Equal(t, billing.AndroidPurchase{Product: "one_year_subscription", PurchaseToken: "token-1"}, p)
	})

	t.Run("android from stringified receipt", func(t *testing.T) {
		t.Parallel()
		native := map[string]any{
			"receipt": `{"productId":"one_year_subscription","purchaseToken":"token-2"}`,
		}
		p, err := billing.ParsePurchase(billing.PlatformAndroidPlaystore, native)
		require.NoError(t, err)
		assert.Equal(t, billing.AndroidPurchase{Product: "one_year_subscription", PurchaseToken: "token-2"}, p)
		assert.IsType(t, map[string]any{}, native["receipt"])
	})

	t.Run("non json receipt passes through", func(t *testing.T) {
		t.Parallel()
		native := map[string]any{"receipt": "MIIT-base64"}
		p, err := billing.ParsePurchase(billing.PlatformAppStore, native)
		require.NoError(t, err)
		assert.Equal(t, "MIIT-base64", p.(billing.AppStorePurchase).Receipt)
		assert.Equal(t, "MIIT-base64", native["receipt"])
	})

	t.Run("paypal", func(t *testing.T) {
		t.Parallel()
		p, err := billing.ParsePurchase(billing.PlatformPayPal, map[string]any{"subscriptionId": "I-BW452GLLEP1G"})
		require.NoError(t, err)
		assert.Equal(t, billing.PlatformPayPal, p.Platform())
		assert.Equal(t, "I-BW452GLLEP1G", p.(billing.PayPalPurchase).SubscriptionID)
	})

	t.Run("missing native purchase", func(t *testing.T) {
		t.Parallel()
		_, err := billing.ParsePurchase(billing.PlatformPayPal, nil)
		assert.ErrorIs(t, err, billing.ErrInvalidInput)
	})
}
