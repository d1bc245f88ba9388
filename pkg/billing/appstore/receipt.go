package appstore

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

const (
	statusOK             = 0
	statusSandboxReceipt = 21007
)

type receiptRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type receiptResponse struct {
	Status             int              `json:"status"`
	Environment        string           `json:"environment"`
	LatestReceiptInfo  []receiptInfo    `json:"latest_receipt_info"`
	PendingRenewalInfo []pendingRenewal `json:"pending_renewal_info"`
}

type receiptInfo struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	ExpiresDateMS         string `json:"expires_date_ms"`
	CancellationDateMS    string `json:"cancellation_date_ms"`
}

type pendingRenewal struct {
	AutoRenewStatus          string `json:"auto_renew_status"`
	IsInBillingRetryPeriod   string `json:"is_in_billing_retry_period"`
	GracePeriodExpiresDateMS string `json:"grace_period_expires_date_ms"`
	ExpirationIntent         string `json:"expiration_intent"`
	OriginalTransactionID    string `json:"original_transaction_id"`
	AutoRenewProductID       string `json:"auto_renew_product_id"`
}

// verifyReceipt posts the receipt to production and retries once against
// sandbox when Apple reports a sandbox receipt.
func (c *Client) verifyReceipt(ctx context.Context, p billing.AppStorePurchase) (*billing.VerificationResult, error) {
	req := receiptRequest{
		ReceiptData:            p.Receipt,
		Password:               c.cfg.SharedSecret,
		ExcludeOldTransactions: true,
	}

	resp, err := c.postReceipt(ctx, c.cfg.VerifyURL, req)
	if err != nil {
		return nil, err
	}
	if resp.Status == statusSandboxReceipt {
		resp, err = c.postReceipt(ctx, c.cfg.SandboxVerifyURL, req)
		if err != nil {
			return nil, err
		}
	}
	if resp.Status != statusOK {
		return nil, billing.InvalidPayload(messageInvalidReceipt, fmt.Errorf("%w: status %d", ErrReceiptRejected, resp.Status))
	}
	if len(resp.LatestReceiptInfo) == 0 {
		return nil, billing.InvalidPayload(ErrNoReceiptInfo.Error(), ErrNoReceiptInfo)
	}

	info := resp.LatestReceiptInfo[0]
	res := &billing.VerificationResult{
		ProductID:     info.ProductID,
		Token:         p.Receipt,
		ProviderState: resp.Environment,
		Raw: map[string]any{
			"environment":           resp.Environment,
			"transactionId":         info.TransactionID,
			"originalTransactionId": info.OriginalTransactionID,
		},
	}
	if ms, ok := parseMS(info.ExpiresDateMS); ok {
		res.ExpiresAt = msToTime(ms)
	}
	if ms, ok := parseMS(info.CancellationDateMS); ok {
		res.CancellationAt = billing.TimePtr(msToTime(ms))
	}

	if len(resp.PendingRenewalInfo) > 0 {
		renewal := resp.PendingRenewalInfo[0]
		if renewal.IsInBillingRetryPeriod == "1" {
			res.IsInBillingRetryPeriod = true
			if ms, ok := parseMS(renewal.GracePeriodExpiresDateMS); ok {
				res.GracePeriodExpiresAt = billing.TimePtr(msToTime(ms))
			}
		}
		res.Raw["autoRenewStatus"] = renewal.AutoRenewStatus
	}
	return res, nil
}

func (c *Client) postReceipt(ctx context.Context, url string, req receiptRequest) (*receiptResponse, error) {
	var resp receiptResponse
	status, err := c.doJSON(ctx, http.MethodPost, url, nil, req, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, billing.InvalidPayload(messageInvalidReceipt, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status))
	}
	return &resp, nil
}

func parseMS(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
