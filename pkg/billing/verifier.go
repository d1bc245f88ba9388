package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/logger"
)

// Verifier checks one kind of purchase against its provider.
// Returned errors are always *Error.
type Verifier[P Purchase] interface {
	Verify(ctx context.Context, p P) (*VerificationResult, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc[P Purchase] func(ctx context.Context, p P) (*VerificationResult, error)

func (f VerifierFunc[P]) Verify(ctx context.Context, p P) (*VerificationResult, error) {
	return f(ctx, p)
}

// DefaultTimeout bounds a single provider verification.
const DefaultTimeout = 15 * time.Second

// Dispatcher routes a Purchase to the verifier of its platform.
// A platform without a configured verifier is rejected.
type Dispatcher struct {
	android Verifier[AndroidPurchase]
	apple   Verifier[AppStorePurchase]
	paypal  Verifier[PayPalPurchase]
	timeout time.Duration
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAndroid enables Google Play verification.
func WithAndroid(v Verifier[AndroidPurchase]) DispatcherOption {
	return func(d *Dispatcher) { d.android = v }
}

// WithAppStore enables App Store verification.
func WithAppStore(v Verifier[AppStorePurchase]) DispatcherOption {
	return func(d *Dispatcher) { d.apple = v }
}

// WithPayPal enables PayPal verification.
func WithPayPal(v Verifier[PayPalPurchase]) DispatcherOption {
	return func(d *Dispatcher) { d.paypal = v }
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithLogger sets the logger used to record provider failures.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher. Platforms are enabled through options.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Verify dispatches p under the configured timeout and normalizes any error
// into *Error.
func (d *Dispatcher) Verify(ctx context.Context, p Purchase) (*VerificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		res *VerificationResult
		err error
	)
	switch p := p.(type) {
	case AndroidPurchase:
		if d.android == nil {
			return nil, InvalidInput(ErrPlatformDisabled.Error(), ErrPlatformDisabled)
		}
		res, err = d.android.Verify(ctx, p)
	case AppStorePurchase:
		if d.apple == nil {
			return nil, InvalidInput(ErrPlatformDisabled.Error(), ErrPlatformDisabled)
		}
		res, err = d.apple.Verify(ctx, p)
	case PayPalPurchase:
		if d.paypal == nil {
			return nil, InvalidInput(ErrPlatformDisabled.Error(), ErrPlatformDisabled)
		}
		res, err = d.paypal.Verify(ctx, p)
	default:
		return nil, InvalidInput(ErrUnknownPlatform.Error(), ErrUnknownPlatform)
	}

	if err != nil {
		err = normalize(ctx, err)
		d.logger.WarnContext(ctx, "purchase verification failed",
			logger.Platform(p.Platform().String()),
			logger.Code(int(CodeOf(err))),
			logger.Error(err),
		)
		return nil, err
	}
	if res == nil {
		return nil, Internal("verifier returned no result", nil)
	}
	res.Platform = p.Platform()
	return res, nil
}

// Enabled reports whether a verifier is configured for platform.
func (d *Dispatcher) Enabled(platform Platform) bool {
	switch platform {
	case PlatformAndroidPlaystore:
		return d.android != nil
	case PlatformAppStore:
		return d.apple != nil
	case PlatformPayPal:
		return d.paypal != nil
	default:
		return false
	}
}

func normalize(ctx context.Context, err error) error {
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	var be *Error
	if errors.As(err, &be) {
		// A timeout that interrupted reading a response can surface as a
		// decode failure; it is still a connection failure.
		if timedOut && be.Code != CodeConnectionFailed {
			return ConnectionFailed("provider request timed out", errors.Join(context.DeadlineExceeded, be.Err))
		}
		return be
	}
	if timedOut {
		return ConnectionFailed("provider request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return ConnectionFailed("provider request cancelled", err)
	}
	return Internal("unexpected verifier failure", err)
}
