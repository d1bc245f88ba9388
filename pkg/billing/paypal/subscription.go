package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// Subscription statuses reported by PayPal.
const (
	StatusApprovalPending = "APPROVAL_PENDING"
	StatusApproved        = "APPROVED"
	StatusActive          = "ACTIVE"
	StatusSuspended       = "SUSPENDED"
	StatusCancelled       = "CANCELLED"
	StatusExpired         = "EXPIRED"
)

// Subscription is the subset of a PayPal billing subscription used here.
type Subscription struct {
	ID               string    `json:"id"`
	PlanID           string    `json:"plan_id"`
	Status           string    `json:"status"`
	StatusUpdateTime time.Time `json:"status_update_time"`
	StartTime        time.Time `json:"start_time"`
	BillingInfo      struct {
		NextBillingTime     time.Time `json:"next_billing_time"`
		FailedPaymentsCount int       `json:"failed_payments_count"`
		LastPayment         struct {
			Time time.Time `json:"time"`
		} `json:"last_payment"`
	} `json:"billing_info"`
}

// GetSubscription fetches subscription details.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if id == "" {
		return nil, billing.InvalidInput(ErrMissingSubscription.Error(), ErrMissingSubscription)
	}
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/billing/subscriptions/"+url.PathEscape(id), nil, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription cancels a subscription with the given reason.
func (c *Client) CancelSubscription(ctx context.Context, id, reason string) error {
	if id == "" {
		return billing.InvalidInput(ErrMissingSubscription.Error(), ErrMissingSubscription)
	}
	if reason == "" {
		reason = "User cancelled"
	}
	return c.do(ctx, http.MethodPost, "/billing/subscriptions/"+url.PathEscape(id)+"/cancel", nil,
		map[string]string{"reason": reason}, nil)
}

// Verify checks a PayPal subscription and maps it onto a verification result.
func (c *Client) Verify(ctx context.Context, p billing.PayPalPurchase) (*billing.VerificationResult, error) {
	sub, err := c.GetSubscription(ctx, p.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return normalize(sub)
}

func normalize(sub *Subscription) (*billing.VerificationResult, error) {
	res := &billing.VerificationResult{
		ProductID:     sub.PlanID,
		Token:         sub.ID,
		ProviderState: sub.Status,
		Raw: map[string]any{
			"status":              sub.Status,
			"planId":              sub.PlanID,
			"failedPaymentsCount": sub.BillingInfo.FailedPaymentsCount,
		},
	}
	next := sub.BillingInfo.NextBillingTime

	switch sub.Status {
	case StatusActive:
		res.ExpiresAt = next
	case StatusSuspended:
		res.ExpiresAt = sub.StatusUpdateTime
		res.IsExpired = true
		res.IsInBillingRetryPeriod = true
		if !next.IsZero() {
			res.GracePeriodExpiresAt = billing.TimePtr(next)
		}
	case StatusCancelled:
		res.ExpiresAt = next
		if res.ExpiresAt.IsZero() {
			res.ExpiresAt = sub.StatusUpdateTime
		}
		res.CancellationAt = billing.TimePtr(sub.StatusUpdateTime)
	case StatusExpired:
		res.ExpiresAt = sub.StatusUpdateTime
		res.IsExpired = true
	case StatusApprovalPending, StatusApproved:
		return nil, billing.InvalidPayload(ErrNotActivated.Error(), ErrNotActivated)
	default:
		return nil, billing.InvalidPayload("paypal subscription invalid", fmt.Errorf("%w: %q", ErrUnknownStatus, sub.Status))
	}
	return res, nil
}
