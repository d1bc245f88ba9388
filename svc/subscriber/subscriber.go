package subscriber

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// Subscriber is the billing record of one user.
type Subscriber struct {
	ID          string
	UserID      string
	Country     string
	Status      billing.LifecycleState // Cached state of the last verified transaction
	Product     Product
	Transaction *Transaction // Last verified purchase, replaced wholesale
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Product is the catalog product the user subscribed to.
type Product struct {
	SubscriptionID string
	PlanID         string
	Title          string
	BillingPeriod  string
	Price          any // Number or provider price object, kept as sent
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsZero reports whether no product has been recorded.
func (p Product) IsZero() bool {
	return p.SubscriptionID == "" && p.PlanID == ""
}

// Transaction is a verified purchase together with its resolved state.
type Transaction struct {
	Platform             billing.Platform
	NativePurchase       map[string]any
	SubscriptionState    billing.LifecycleState
	ExpiryDate           time.Time
	IsExpired            bool
	IsBillingRetryPeriod bool
	VerifiedAt           time.Time
}

// ProductID returns the product id the client submitted with the purchase.
func (t *Transaction) ProductID() string {
	if t == nil || t.NativePurchase == nil {
		return ""
	}
	id, _ := t.NativePurchase["productId"].(string)
	return id
}

// Entitled reports whether the subscriber currently has paid access.
func (s *Subscriber) Entitled() bool {
	return s.Status.Entitled()
}

// IsValidID reports whether id is a well-formed subscriber id.
func IsValidID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}

// Actor is the authenticated caller of a subscriber operation.
type Actor struct {
	UserID string
	Admin  bool
}

// CanAccess reports whether the actor may read or modify the record of userID.
func (a Actor) CanAccess(userID string) bool {
	return a.Admin || (a.UserID != "" && a.UserID == userID)
}
