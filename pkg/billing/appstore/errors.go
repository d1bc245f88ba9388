package appstore

import "errors"

var (
	ErrMissingReceipt      = errors.New("appstore: receipt or transaction id is required")
	ErrServerAPIDisabled   = errors.New("appstore: server api credentials are not configured")
	ErrInvalidPrivateKey   = errors.New("appstore: invalid private key")
	ErrReceiptRejected     = errors.New("appstore: receipt rejected")
	ErrNoReceiptInfo       = errors.New("appstore: no latest_receipt_info in response")
	ErrNoLastTransaction   = errors.New("appstore: invalid response from app store validator")
	ErrInvalidSignedData   = errors.New("appstore: invalid signed payload")
	ErrUnexpectedStatus    = errors.New("appstore: unexpected response status")
	ErrUnknownSubscription = errors.New("appstore: unknown subscription status")

	ErrInvalidRootCertificate  = errors.New("appstore: invalid root certificate")
	ErrMissingCertificateChain = errors.New("appstore: signed payload has no x5c chain")
	ErrUntrustedCertificate    = errors.New("appstore: signed payload certificate is not trusted")
)

const messageInvalidReceipt = "error verifying purchase. Check if the appStoreReceipt is valid"
