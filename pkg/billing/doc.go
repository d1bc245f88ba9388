// Package billing verifies store purchases and derives subscription state.
//
// A client purchase is parsed into one of the Purchase variants
// (AndroidPurchase, AppStorePurchase, PayPalPurchase) and routed by a
// Dispatcher to the verifier configured for its platform. Verifiers live in
// the playstore, appstore and paypal sub-packages and return a
// provider-neutral VerificationResult.
//
// Resolve turns a VerificationResult into a LifecycleState at a given instant:
//
//	res, err := dispatcher.Verify(ctx, purchase)
//	if err != nil {
//		return err // always *billing.Error
//	}
//	resolution := billing.Resolve(*res, clock.Now())
//
// # Errors
//
// Every failure is an *Error carrying a Kind and a client-facing Code:
// 6778001 for rejected input or purchases, 6778002 for provider transport
// failures and timeouts, 6778005 for internal errors. Kinds can be matched with
// errors.Is against the exported sentinels (ErrInvalidInput, ErrConflict,
// ErrPurchaseVerificationFailed, ErrConnectionFailed and so on).
package billing
