package subscriber

import "github.com/cboard-org/cboard-billing/pkg/billing"

// Outcome is the typed result of a transaction attach as reported to the
// client purchase plugin.
type Outcome struct {
	OK          bool
	ProductID   string
	Transaction *Transaction
	State       billing.LifecycleState
	Code        billing.Code
	Message     string
}

// NewOutcome builds the Outcome of an AttachTransaction call. Internal error
// details are replaced by a generic message.
func NewOutcome(sub *Subscriber, err error) Outcome {
	if err != nil {
		be := billing.AsError(err)
		msg := be.Message
		if be.Kind == billing.KindInternal {
			msg = "internal error"
		}
		return Outcome{Code: be.Code, Message: msg}
	}
	if sub == nil || sub.Transaction == nil {
		return Outcome{Code: billing.CodeInternalError, Message: "internal error"}
	}
	productID := sub.Transaction.ProductID()
	if productID == "" {
		productID = sub.Product.SubscriptionID
	}
	return Outcome{
		OK:          true,
		ProductID:   productID,
		Transaction: sub.Transaction,
		State:       sub.Transaction.SubscriptionState,
	}
}
