package playstore

import "errors"

var (
	ErrMissingPackageName = errors.New("playstore: package name is required")
	ErrCredentials        = errors.New("playstore: failed to load credentials")
	ErrNotAcknowledged    = errors.New("playstore: purchase is not acknowledged")
	ErrNoLineItems        = errors.New("playstore: purchase has no line items")
	ErrInvalidExpiry      = errors.New("playstore: invalid line item expiry")
	ErrListSubscriptions  = errors.New("playstore: failed to list subscriptions")
)

// messageInvalidToken is the client-facing message for any rejected purchase.
const messageInvalidToken = "purchase token invalid"
