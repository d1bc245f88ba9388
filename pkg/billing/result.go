package billing

import "time"

// VerificationResult is the provider-neutral outcome of a successful
// verification. It is transient; only the resolved transaction is persisted.
type VerificationResult struct {
	Platform               Platform
	ProductID              string     // Verified product id as reported by the provider
	Token                  string     // Purchase token, receipt or subscription id that was checked
	ExpiresAt              time.Time  // Zero when the provider reported no expiry
	IsExpired              bool       // Provider-level expiry flag
	IsInBillingRetryPeriod bool       // Renewal payment failed and is being retried
	GracePeriodExpiresAt   *time.Time // Set only while in billing retry
	CancellationAt         *time.Time // Set when the subscription was cancelled or revoked
	ProviderState          string     // Provider status string, for logs and support
	Raw                    map[string]any
}

// TimePtr returns a pointer to t. Verifiers use it for optional timestamps.
func TimePtr(t time.Time) *time.Time { return &t }
