package subscriber

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/logger"
)

// Verifier checks a purchase with its provider. *billing.Dispatcher
// implements it.
type Verifier interface {
	Verify(ctx context.Context, p billing.Purchase) (*billing.VerificationResult, error)
}

// ProductResolver maps a provider product id onto the catalog subscription
// id. PayPal reports plan ids, which the catalog links to subscriptions.
type ProductResolver interface {
	ResolveProductID(ctx context.Context, platform billing.Platform, providerProductID string) (string, error)
}

// CreateInput holds the fields of a new subscriber.
type CreateInput struct {
	UserID  string
	Country string
	Status  string
	Product *Product
}

// TransactionInput is a purchase submitted by a client app.
type TransactionInput struct {
	Platform       string
	NativePurchase map[string]any
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	Country     *string
	Status      *string
	Product     *Product
	Transaction *TransactionInput
}

// Service manages subscriber records and reconciles them with providers.
type Service struct {
	store         Store
	verifier      Verifier
	clock         billing.Clock
	products      ProductResolver
	logger        *slog.Logger
	refreshOnRead bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the system clock.
func WithClock(c billing.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithProductResolver sets the catalog lookup used by the product check.
func WithProductResolver(r ProductResolver) Option {
	return func(s *Service) { s.products = r }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRefreshOnRead toggles re-verification of the stored transaction when a
// subscriber is read by user id. Enabled by default.
func WithRefreshOnRead(enabled bool) Option {
	return func(s *Service) { s.refreshOnRead = enabled }
}

// NewService creates a Service.
// Panics if store or verifier is nil.
func NewService(store Store, verifier Verifier, opts ...Option) *Service {
	if store == nil {
		panic("subscriber: Store is required")
	}
	if verifier == nil {
		panic("subscriber: Verifier is required")
	}
	s := &Service{
		store:         store,
		verifier:      verifier,
		clock:         billing.SystemClock{},
		logger:        slog.New(slog.DiscardHandler),
		refreshOnRead: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("subscriber"))
	return s
}

// Create stores a new subscriber. Non-admin actors may only create their own.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Subscriber, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Country = strings.TrimSpace(in.Country)
	if in.UserID == "" || in.Country == "" {
		return nil, billing.InvalidInput("userId and country are required", nil)
	}
	if !actor.CanAccess(in.UserID) {
		return nil, billing.Unauthorized(messageUnauthorized)
	}

	status := billing.StateNotSubscribed
	if in.Status != "" {
		st, ok := billing.ParseState(in.Status)
		if !ok {
			return nil, billing.InvalidInput("invalid subscriber status", nil)
		}
		status = st
	}

	now := s.clock.Now()
	sub := &Subscriber{
		UserID:    in.UserID,
		Country:   in.Country,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Product != nil {
		sub.Product = *in.Product
		sub.Product.CreatedAt = now
		sub.Product.UpdatedAt = now
	}

	if err := s.store.Insert(ctx, sub); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, billing.Conflict("Error saving subscriber", err)
		}
		return nil, billing.Internal("failed to create subscriber", err)
	}
	s.logger.InfoContext(ctx, "subscriber created", logger.SubscriberID(sub.ID), logger.UserID(sub.UserID))
	return sub, nil
}

// GetByUserID returns the subscriber of userID. When refresh on read is
// enabled the stored transaction is re-verified first; a failed refresh is
// logged and the stored record is returned.
func (s *Service) GetByUserID(ctx context.Context, actor Actor, userID string) (*Subscriber, error) {
	if !actor.CanAccess(userID) {
		return nil, billing.Unauthorized(messageUnauthorized)
	}
	sub, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, s.storeError(err, "failed to load subscriber")
	}

	if s.refreshOnRead && sub.Transaction != nil {
		refreshed, err := s.Refresh(ctx, sub)
		if err != nil {
			s.logger.WarnContext(ctx, "subscriber refresh failed",
				logger.SubscriberID(sub.ID),
				logger.Error(err),
			)
			return sub, nil
		}
		sub = refreshed
	}
	return sub, nil
}

// GetByID returns the subscriber with the given id.
func (s *Service) GetByID(ctx context.Context, actor Actor, id string) (*Subscriber, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(sub.UserID) {
		return nil, billing.Unauthorized(messageUnauthorized)
	}
	return sub, nil
}

// AttachTransaction verifies a purchase and stores it on the subscriber.
// Unverified purchases are never persisted. Every error is a *billing.Error.
func (s *Service) AttachTransaction(ctx context.Context, actor Actor, id string, in TransactionInput) (*Subscriber, error) {
	if !IsValidID(id) {
		return nil, billing.InvalidInput("Invalid ID for subscriber. Subscriber Id: "+id, ErrInvalidID)
	}
	platform, purchase, err := parseTransaction(in)
	if err != nil {
		return nil, err
	}

	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(sub.UserID) {
		return nil, billing.Unauthorized(messageUnauthorized)
	}

	tx, err := s.verify(ctx, sub.Product, platform, purchase, in.NativePurchase)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateFields(ctx, id, Fields{
		Status:      &tx.SubscriptionState,
		Transaction: tx,
		UpdatedAt:   tx.VerifiedAt,
	})
	if err != nil {
		return nil, s.storeError(err, "failed to save transaction")
	}

	s.logger.InfoContext(ctx, "transaction attached",
		logger.SubscriberID(id),
		logger.Platform(string(tx.Platform)),
		logger.State(string(tx.SubscriptionState)),
	)
	return updated, nil
}

// Update merges in into the subscriber. A transaction included in the update
// goes through the same verification as AttachTransaction; a failed
// verification is reported as a conflict.
func (s *Service) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (*Subscriber, error) {
	if !IsValidID(id) {
		return nil, billing.InvalidInput("Invalid ID for subscriber. Subscriber Id: "+id, ErrInvalidID)
	}
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(sub.UserID) {
		return nil, billing.Unauthorized(messageUnauthorized)
	}

	now := s.clock.Now()
	fields := Fields{UpdatedAt: now}

	if in.Country != nil {
		c := strings.TrimSpace(*in.Country)
		if c == "" {
			return nil, billing.InvalidInput("country must not be empty", nil)
		}
		fields.Country = &c
	}
	if in.Status != nil {
		st, ok := billing.ParseState(*in.Status)
		if !ok {
			return nil, billing.InvalidInput("invalid subscriber status", nil)
		}
		fields.Status = &st
	}

	product := sub.Product
	if in.Product != nil {
		product = *in.Product
		product.CreatedAt = sub.Product.CreatedAt
		if product.CreatedAt.IsZero() {
			product.CreatedAt = now
		}
		product.UpdatedAt = now
		fields.Product = &product
	}

	if in.Transaction != nil {
		txIn := *in.Transaction
		// The user picked a different subscription than the one purchased before.
		if pid, _ := txIn.NativePurchase["productId"].(string); pid != "" && product.SubscriptionID != "" && pid != product.SubscriptionID {
			native := make(map[string]any, len(txIn.NativePurchase))
			for k, v := range txIn.NativePurchase {
				native[k] = v
			}
			native["productId"] = product.SubscriptionID
			txIn.NativePurchase = native
		}

		platform, purchase, err := parseTransaction(txIn)
		if err != nil {
			return nil, billing.Conflict(billing.AsError(err).Message, err)
		}
		tx, err := s.verify(ctx, product, platform, purchase, txIn.NativePurchase)
		if err != nil {
			be := billing.AsError(err)
			if be.Kind == billing.KindInternal {
				return nil, be
			}
			return nil, billing.Conflict(be.Message, err)
		}
		fields.Transaction = tx
		fields.Status = &tx.SubscriptionState
	}

	updated, err := s.store.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, s.storeError(err, "failed to update subscriber")
	}
	return updated, nil
}

// Delete removes a subscriber by id. Admin only.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) (*Subscriber, error) {
	if !actor.Admin {
		return nil, billing.Unauthorized("only admins may delete subscribers")
	}
	if !IsValidID(id) {
		return nil, billing.InvalidInput("Invalid ID for subscriber. Subscriber Id: "+id, ErrInvalidID)
	}
	sub, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to delete subscriber")
	}
	s.logger.InfoContext(ctx, "subscriber deleted", logger.SubscriberID(id))
	return sub, nil
}

// DeleteByUserID removes the subscriber of userID, typically when the user
// account is deleted.
func (s *Service) DeleteByUserID(ctx context.Context, actor Actor, userID string) error {
	if !actor.CanAccess(userID) {
		return billing.Unauthorized(messageUnauthorized)
	}
	sub, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return s.storeError(err, "failed to load subscriber")
	}
	if _, err := s.store.DeleteByID(ctx, sub.ID); err != nil {
		return s.storeError(err, "failed to delete subscriber")
	}
	return nil
}

func parseTransaction(in TransactionInput) (billing.Platform, billing.Purchase, error) {
	if in.NativePurchase == nil && in.Platform == "" {
		return "", nil, billing.InvalidInput(ErrMissingTransaction.Error(), ErrMissingTransaction)
	}
	platform, err := billing.ParsePlatform(in.Platform)
	if err != nil {
		return "", nil, err
	}
	purchase, err := billing.ParsePurchase(platform, in.NativePurchase)
	if err != nil {
		return "", nil, err
	}
	return platform, purchase, nil
}

// verify runs provider verification, resolution and the product check.
func (s *Service) verify(ctx context.Context, product Product, platform billing.Platform, purchase billing.Purchase, native map[string]any) (*Transaction, error) {
	res, err := s.verifier.Verify(ctx, purchase)
	if err != nil {
		return nil, billing.AsError(err)
	}

	now := s.clock.Now()
	resolution := billing.Resolve(*res, now)

	if resolution.State.Entitled() {
		productID, err := s.canonicalProductID(ctx, platform, res.ProductID)
		if err != nil {
			return nil, err
		}
		if productID != product.SubscriptionID {
			return nil, billing.InvalidInput(ErrProductMismatch.Error(), ErrProductMismatch)
		}
	}

	return &Transaction{
		Platform:             platform,
		NativePurchase:       native,
		SubscriptionState:    resolution.State,
		ExpiryDate:           resolution.ExpiresAt,
		IsExpired:            resolution.IsExpired,
		IsBillingRetryPeriod: resolution.IsBillingRetryPeriod,
		VerifiedAt:           now,
	}, nil
}

func (s *Service) canonicalProductID(ctx context.Context, platform billing.Platform, providerID string) (string, error) {
	if s.products == nil {
		return providerID, nil
	}
	id, err := s.products.ResolveProductID(ctx, platform, providerID)
	if err != nil {
		return "", billing.AsError(err)
	}
	return id, nil
}

func (s *Service) find(ctx context.Context, id string) (*Subscriber, error) {
	if !IsValidID(id) {
		return nil, billing.NotFound("Subscriber does not exist. Subscriber Id: " + id)
	}
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load subscriber")
	}
	return sub, nil
}

func (s *Service) storeError(err error, msg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return billing.NotFound("subscriber not found")
	case errors.Is(err, ErrDuplicate):
		return billing.Conflict("Error saving subscriber", err)
	default:
		return billing.Internal(msg, err)
	}
}
