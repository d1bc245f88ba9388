package appstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// errorCodeTransactionNotFoundInProduction is returned by the production
// Server API for sandbox transactions.
const errorCodeTransactionNotFoundInProduction = 4040010

// Subscription status values of the Server API.
const (
	StatusActive       = 1
	StatusExpired      = 2
	StatusBillingRetry = 3
	StatusGracePeriod  = 4
	StatusRevoked      = 5
)

type statusResponse struct {
	Environment string `json:"environment"`
	BundleID    string `json:"bundleId"`
	Data        []struct {
		SubscriptionGroupIdentifier string `json:"subscriptionGroupIdentifier"`
		LastTransactions            []struct {
			OriginalTransactionID string `json:"originalTransactionId"`
			Status                int    `json:"status"`
			SignedTransactionInfo string `json:"signedTransactionInfo"`
			SignedRenewalInfo     string `json:"signedRenewalInfo"`
		} `json:"lastTransactions"`
	} `json:"data"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type transactionInfo struct {
	ProductID             string `json:"productId"`
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	BundleID              string `json:"bundleId"`
	ExpiresDate           int64  `json:"expiresDate"`
	RevocationDate        int64  `json:"revocationDate"`
	jwt.RegisteredClaims
}

type renewalInfo struct {
	AutoRenewStatus        int    `json:"autoRenewStatus"`
	AutoRenewProductID     string `json:"autoRenewProductId"`
	IsInBillingRetryPeriod bool   `json:"isInBillingRetryPeriod"`
	GracePeriodExpiresDate int64  `json:"gracePeriodExpiresDate"`
	jwt.RegisteredClaims
}

// verifyTransaction fetches the subscription statuses for a transaction id,
// falling back to sandbox when production does not know the transaction.
func (c *Client) verifyTransaction(ctx context.Context, p billing.AppStorePurchase) (*billing.VerificationResult, error) {
	resp, err := c.subscriptionStatus(ctx, c.cfg.APIURL, p.TransactionID)
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode == errorCodeTransactionNotFoundInProduction {
		resp, err = c.subscriptionStatus(ctx, c.cfg.SandboxAPIURL, p.TransactionID)
		if err != nil {
			return nil, err
		}
	}
	if resp.ErrorCode != 0 {
		return nil, billing.InvalidPayload(messageInvalidReceipt,
			fmt.Errorf("%w: %d %s", ErrReceiptRejected, resp.ErrorCode, resp.ErrorMessage))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].LastTransactions) == 0 {
		return nil, billing.InvalidPayload(ErrNoLastTransaction.Error(), ErrNoLastTransaction)
	}
	last := resp.Data[0].LastTransactions[0]

	var tx transactionInfo
	if err := c.payloads.decode(last.SignedTransactionInfo, &tx); err != nil {
		return nil, billing.InvalidPayload(messageInvalidReceipt, fmt.Errorf("%w: %w", ErrInvalidSignedData, err))
	}
	var renewal renewalInfo
	if last.SignedRenewalInfo != "" {
		if err := c.payloads.decode(last.SignedRenewalInfo, &renewal); err != nil {
			return nil, billing.InvalidPayload(messageInvalidReceipt, fmt.Errorf("%w: %w", ErrInvalidSignedData, err))
		}
	}

	return mapStatus(p, last.Status, tx, renewal, resp.Environment)
}

// mapStatus folds the Server API status into the result fields the resolver
// reads, so the resolved state matches the status Apple reported.
func mapStatus(p billing.AppStorePurchase, status int, tx transactionInfo, renewal renewalInfo, env string) (*billing.VerificationResult, error) {
	res := &billing.VerificationResult{
		ProductID:     tx.ProductID,
		Token:         p.TransactionID,
		ProviderState: fmt.Sprintf("%d", status),
		Raw: map[string]any{
			"environment":           env,
			"status":                status,
			"transactionId":         tx.TransactionID,
			"originalTransactionId": tx.OriginalTransactionID,
			"autoRenewStatus":       renewal.AutoRenewStatus,
		},
	}
	if tx.ExpiresDate > 0 {
		res.ExpiresAt = msToTime(tx.ExpiresDate)
	}

	switch status {
	case StatusActive:
		if renewal.AutoRenewStatus != 1 && !res.ExpiresAt.IsZero() {
			res.CancellationAt = billing.TimePtr(res.ExpiresAt)
		}
	case StatusExpired:
		res.IsExpired = true
	case StatusBillingRetry:
		res.IsExpired = true
		res.IsInBillingRetryPeriod = true
	case StatusGracePeriod:
		res.IsExpired = true
		res.IsInBillingRetryPeriod = true
		if renewal.GracePeriodExpiresDate > 0 {
			res.GracePeriodExpiresAt = billing.TimePtr(msToTime(renewal.GracePeriodExpiresDate))
		} else if !res.ExpiresAt.IsZero() {
			res.GracePeriodExpiresAt = billing.TimePtr(res.ExpiresAt)
		}
	case StatusRevoked:
		res.IsExpired = true
		if tx.RevocationDate > 0 {
			res.ExpiresAt = msToTime(tx.RevocationDate)
		}
		if !res.ExpiresAt.IsZero() {
			res.CancellationAt = billing.TimePtr(res.ExpiresAt)
		}
	default:
		return nil, billing.InvalidPayload(messageInvalidReceipt, fmt.Errorf("%w: %d", ErrUnknownSubscription, status))
	}
	return res, nil
}

func (c *Client) subscriptionStatus(ctx context.Context, base, transactionID string) (*statusResponse, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, billing.Internal("failed to sign app store token", err)
	}

	endpoint, err := url.JoinPath(base, "inApps/v1/subscriptions", transactionID)
	if err != nil {
		return nil, billing.Internal("invalid app store api url", err)
	}

	var resp statusResponse
	status, err := c.doJSON(ctx, http.MethodGet, endpoint, map[string]string{
		"Authorization": "Bearer " + token,
	}, nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && resp.ErrorCode == 0 {
		return nil, billing.InvalidPayload(messageInvalidReceipt, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status))
	}
	return &resp, nil
}
