package paypal

import "errors"

var (
	ErrMissingCredentials  = errors.New("paypal: client id and secret are required")
	ErrMissingSubscription = errors.New("paypal: subscription id is required")
	ErrNotActivated        = errors.New("paypal: subscription is not active yet")
	ErrUnknownStatus       = errors.New("paypal: unknown subscription status")
	ErrUnexpectedStatus    = errors.New("paypal: unexpected response status")
)
