package billing

import (
	"errors"
	"fmt"
)

// Kind classifies a billing failure. The set is closed; callers switch on it
// instead of matching messages.
type Kind uint8

const (
	KindInvalidInput Kind = iota + 1
	KindConflict
	KindNotFound
	KindUnauthorized
	KindPurchaseVerificationFailed
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindPurchaseVerificationFailed:
		return "purchase_verification_failed"
	case KindInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Code is the numeric failure code returned to client apps.
type Code int

const (
	CodeInvalidPayload   Code = 6778001
	CodeConnectionFailed Code = 6778002
	CodeInternalError    Code = 6778005
)

// Sentinels matched through errors.Is against any *Error of the same kind.
var (
	ErrInvalidInput               = errors.New("invalid input")
	ErrConflict                   = errors.New("conflict")
	ErrNotFound                   = errors.New("not found")
	ErrUnauthorized               = errors.New("unauthorized")
	ErrPurchaseVerificationFailed = errors.New("purchase verification failed")
	ErrConnectionFailed           = errors.New("provider connection failed")
	ErrInternal                   = errors.New("internal error")

	ErrUnknownPlatform  = errors.New("only known platforms are allowed")
	ErrPlatformDisabled = errors.New("platform verifier is not configured")
)

// Error is the structured failure every verifier and service returns.
// Err holds the underlying cause for logs; it is never rendered to clients.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 3)
	errs = append(errs, e.Kind.sentinel())
	if e.Code == CodeConnectionFailed {
		errs = append(errs, ErrConnectionFailed)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindUnauthorized:
		return ErrUnauthorized
	case KindPurchaseVerificationFailed:
		return ErrPurchaseVerificationFailed
	default:
		return ErrInternal
	}
}

// InvalidInput reports malformed or missing request fields.
func InvalidInput(message string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Code: CodeInvalidPayload, Message: message, Err: err}
}

// Conflict reports a uniqueness violation.
func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Code: CodeInvalidPayload, Message: message, Err: err}
}

// NotFound reports a missing entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeInvalidPayload, Message: message}
}

// Unauthorized reports a caller without ownership or admin rights.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeInvalidPayload, Message: message}
}

// InvalidPayload reports a purchase the provider rejected or could not confirm.
func InvalidPayload(message string, err error) *Error {
	return &Error{Kind: KindPurchaseVerificationFailed, Code: CodeInvalidPayload, Message: message, Err: err}
}

// ConnectionFailed reports a transport failure or timeout talking to a provider.
// Clients may retry these.
func ConnectionFailed(message string, err error) *Error {
	return &Error{Kind: KindPurchaseVerificationFailed, Code: CodeConnectionFailed, Message: message, Err: err}
}

// Internal reports an unexpected persistence or logic failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternalError, Message: message, Err: err}
}

// AsError extracts the *Error from err. Anything that is not already a
// billing error is reported as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return Internal("internal error", err)
}

// CodeOf returns the client-facing code for err.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	return AsError(err).Code
}

// IsRetryable reports whether the failure was transport related.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}
