package billing

import "time"

// LifecycleState is the derived subscription state stored on a subscriber.
type LifecycleState string

const (
	StateActive        LifecycleState = "active"
	StateCancelled     LifecycleState = "cancelled"
	StateInGracePeriod LifecycleState = "in_grace_period"
	StateExpired       LifecycleState = "expired"
	StateNotSubscribed LifecycleState = "not_subscribed"
)

// ParseState validates a lifecycle state string.
func ParseState(s string) (LifecycleState, bool) {
	switch st := LifecycleState(s); st {
	case StateActive, StateCancelled, StateInGracePeriod, StateExpired, StateNotSubscribed:
		return st, true
	default:
		return "", false
	}
}

func (s LifecycleState) String() string { return string(s) }

// Entitled reports whether a resolved state grants access to paid features.
func (s LifecycleState) Entitled() bool {
	switch s {
	case StateActive, StateInGracePeriod, StateCancelled:
		return true
	default:
		return false
	}
}

// Resolution is the resolver output persisted with the transaction.
type Resolution struct {
	State                LifecycleState
	ExpiresAt            time.Time
	IsExpired            bool
	IsBillingRetryPeriod bool
}

// Resolve derives the lifecycle state of a verified purchase at instant now.
// Rules are evaluated in order and the first match wins:
//
//  1. billing retry and now <= grace expiry: in_grace_period
//  2. cancellation and billing retry: expired once now >= cancellation, else cancelled
//  3. now <= expiry: active
//  4. now >= expiry: expired
//  5. otherwise: not_subscribed
//
// A cancellation without billing retry does not change the outcome: the
// purchase stays active until it expires. A result without an expiry is
// not_subscribed. Comparisons use millisecond
// precision. Resolve never fails.
func Resolve(r VerificationResult, now time.Time) Resolution {
	res := Resolution{
		ExpiresAt:            r.ExpiresAt,
		IsExpired:            r.IsExpired,
		IsBillingRetryPeriod: r.IsInBillingRetryPeriod,
	}
	n := now.UnixMilli()

	if r.IsInBillingRetryPeriod && r.GracePeriodExpiresAt != nil && n <= r.GracePeriodExpiresAt.UnixMilli() {
		res.State = StateInGracePeriod
		res.ExpiresAt = *r.GracePeriodExpiresAt
		return res
	}

	if r.CancellationAt != nil && r.IsInBillingRetryPeriod {
		if n >= r.CancellationAt.UnixMilli() {
			res.State = StateExpired
			res.IsExpired = true
			return res
		}
		res.State = StateCancelled
		return res
	}

	if r.ExpiresAt.IsZero() {
		res.State = StateNotSubscribed
		return res
	}
	exp := r.ExpiresAt.UnixMilli()

	switch {
	case n <= exp:
		res.State = StateActive
	case n >= exp:
		res.State = StateExpired
		res.IsExpired = true
	default:
		res.State = StateNotSubscribed
	}
	return res
}
