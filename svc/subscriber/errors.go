package subscriber

import "errors"

var (
	ErrNotFound  = errors.New("subscriber not found")
	ErrDuplicate = errors.New("subscriber already exists")

	ErrInvalidID          = errors.New("invalid subscriber id")
	ErrProductMismatch    = errors.New("purchased product does not match subscriber product")
	ErrMissingTransaction = errors.New("transaction object is not provided")
)

const messageUnauthorized = "unauthorized request, subscriber object is only accessible with subscribed user authToken"
