package playstore

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// Provider subscription states relevant to entitlement.
const (
	StateActive        = "SUBSCRIPTION_STATE_ACTIVE"
	StateCanceled      = "SUBSCRIPTION_STATE_CANCELED"
	StateInGracePeriod = "SUBSCRIPTION_STATE_IN_GRACE_PERIOD"
	StateOnHold        = "SUBSCRIPTION_STATE_ON_HOLD"
	StatePaused        = "SUBSCRIPTION_STATE_PAUSED"
	StateExpired       = "SUBSCRIPTION_STATE_EXPIRED"

	acknowledged = "ACKNOWLEDGEMENT_STATE_ACKNOWLEDGED"
)

// Verify checks a Play subscription purchase token.
func (c *Client) Verify(ctx context.Context, p billing.AndroidPurchase) (*billing.VerificationResult, error) {
	if p.Product == "" || p.PurchaseToken == "" {
		return nil, billing.InvalidInput("productId and purchaseToken are required", nil)
	}

	purchase, err := c.svc.Purchases.Subscriptionsv2.Get(c.packageName, p.PurchaseToken).Context(ctx).Do()
	if err != nil {
		return nil, classify(ctx, err)
	}
	if purchase.HTTPStatusCode != 0 && purchase.HTTPStatusCode != http.StatusOK {
		return nil, billing.InvalidPayload(messageInvalidToken, nil)
	}
	return normalize(purchase, p)
}

// normalize maps a SubscriptionPurchaseV2 onto the provider-neutral result.
func normalize(purchase *androidpublisher.SubscriptionPurchaseV2, p billing.AndroidPurchase) (*billing.VerificationResult, error) {
	if purchase.AcknowledgementState != acknowledged {
		return nil, billing.InvalidPayload(messageInvalidToken, ErrNotAcknowledged)
	}
	if len(purchase.LineItems) == 0 || purchase.LineItems[0] == nil || purchase.LineItems[0].ExpiryTime == "" {
		return nil, billing.InvalidPayload(messageInvalidToken, ErrNoLineItems)
	}
	item := purchase.LineItems[0]

	expiry, err := time.Parse(time.RFC3339Nano, item.ExpiryTime)
	if err != nil {
		return nil, billing.InvalidPayload(messageInvalidToken, errors.Join(ErrInvalidExpiry, err))
	}

	productID := item.ProductId
	if productID == "" {
		productID = p.Product
	}

	res := &billing.VerificationResult{
		ProductID:     productID,
		Token:         p.PurchaseToken,
		ExpiresAt:     expiry.UTC(),
		ProviderState: purchase.SubscriptionState,
		Raw: map[string]any{
			"subscriptionState":    purchase.SubscriptionState,
			"acknowledgementState": purchase.AcknowledgementState,
			"latestOrderId":        purchase.LatestOrderId,
			"regionCode":           purchase.RegionCode,
			"startTime":            purchase.StartTime,
		},
	}

	switch purchase.SubscriptionState {
	case StateInGracePeriod:
		res.IsExpired = true
		res.IsInBillingRetryPeriod = true
		res.GracePeriodExpiresAt = billing.TimePtr(res.ExpiresAt)
	case StateOnHold, StateExpired:
		res.IsExpired = true
	case StateCanceled:
		res.CancellationAt = billing.TimePtr(res.ExpiresAt)
	}
	return res, nil
}

// classify maps API and transport errors onto billing error codes.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return billing.ConnectionFailed("google play request failed", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests {
			return billing.ConnectionFailed("google play unavailable", err)
		}
		return billing.InvalidPayload(messageInvalidToken, err)
	}
	return billing.ConnectionFailed("google play request failed", err)
}
