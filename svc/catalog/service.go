package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/billing/paypal"
	"github.com/cboard-org/cboard-billing/pkg/billing/playstore"
	"github.com/cboard-org/cboard-billing/pkg/logger"
)

// PlaySource lists the subscription products configured in the Play Console.
// *playstore.Client implements it.
type PlaySource interface {
	ListSubscriptions(ctx context.Context) ([]playstore.Subscription, error)
}

// PlanSource lists PayPal billing plans. *paypal.Client implements it.
type PlanSource interface {
	ListPlans(ctx context.Context) ([]paypal.Plan, error)
}

// UpdateInput is a partial catalog update. Nil fields are left untouched.
type UpdateInput struct {
	Name     *string
	Status   *string
	Platform *string
	Benefits []string
	Plans    []Plan
}

// Service manages the subscription catalog.
type Service struct {
	store  Store
	clock  billing.Clock
	play   PlaySource
	plans  PlanSource
	logger *slog.Logger
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

// WithPlaySource enables Sync against the Play Console.
func WithPlaySource(src PlaySource) Option {
	return func(s *Service) { s.play = src }
}

// WithPlanSource links synced plans to PayPal plans.
func WithPlanSource(src PlanSource) Option {
	return func(s *Service) { s.plans = src }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
// Panics if store is nil.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("catalog: Store is required")
	}
	s := &Service{
		store:  store,
		clock:  billing.SystemClock{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("catalog"))
	return s
}

// Create adds a catalog entry under subscriptionID.
func (s *Service) Create(ctx context.Context, subscriptionID string, in Subscription) (*Subscription, error) {
	sub := in.clone()
	sub.ID = ""
	sub.SubscriptionID = subscriptionID
	sub.trim()
	if err := sub.validate(); err != nil {
		return nil, billing.InvalidInput(err.Error(), err)
	}

	now := s.clock.Now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	for i := range sub.Plans {
		sub.Plans[i].CreatedAt, sub.Plans[i].UpdatedAt = now, now
	}

	if err := s.store.Insert(ctx, sub); err != nil {
		return nil, s.storeError(err, "Error saving subscription")
	}
	s.logger.InfoContext(ctx, "subscription created", logger.SubscriptionID(sub.SubscriptionID))
	return sub, nil
}

// Get returns the catalog entry of subscriptionID.
func (s *Service) Get(ctx context.Context, subscriptionID string) (*Subscription, error) {
	sub, err := s.store.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, s.storeError(err, "Error getting subscription")
	}
	return sub, nil
}

// Update merges in into the entry of subscriptionID.
func (s *Service) Update(ctx context.Context, subscriptionID string, in UpdateInput) (*Subscription, error) {
	sub, err := s.store.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, s.storeError(err, "Error updating subscription")
	}

	now := s.clock.Now()
	if in.Name != nil {
		sub.Name = *in.Name
	}
	if in.Status != nil {
		sub.Status = *in.Status
	}
	if in.Platform != nil {
		sub.Platform = *in.Platform
	}
	if in.Benefits != nil {
		sub.Benefits = append([]string(nil), in.Benefits...)
	}
	if in.Plans != nil {
		sub.Plans = mergePlans(sub.Plans, in.Plans, now)
	}
	sub.trim()
	if err := sub.validate(); err != nil {
		return nil, billing.InvalidInput(err.Error(), err)
	}
	sub.UpdatedAt = now

	if err := s.store.Replace(ctx, sub); err != nil {
		return nil, s.storeError(err, "Error saving subscription")
	}
	return sub, nil
}

// Delete removes the entry of subscriptionID and returns it.
func (s *Service) Delete(ctx context.Context, subscriptionID string) (*Subscription, error) {
	sub, err := s.store.DeleteBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, s.storeError(err, "Error deleting subscription")
	}
	s.logger.InfoContext(ctx, "subscription deleted", logger.SubscriptionID(subscriptionID))
	return sub, nil
}

// List returns a page of catalog entries.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	q = q.Normalize()
	data, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, billing.Internal("failed to list subscriptions", err)
	}
	return &Page{
		Data:   data,
		Total:  total,
		Page:   q.Page,
		Limit:  q.Limit,
		Offset: q.Offset,
		Sort:   q.Sort,
		Search: q.Search,
	}, nil
}

// ResolveProductID maps a provider product id onto a catalog subscription id.
// PayPal reports plan ids; other platforms already use the catalog id.
// Unknown PayPal plans are returned unchanged.
func (s *Service) ResolveProductID(ctx context.Context, platform billing.Platform, providerProductID string) (string, error) {
	if platform != billing.PlatformPayPal {
		return providerProductID, nil
	}
	sub, err := s.store.FindByPayPalPlanID(ctx, providerProductID)
	switch {
	case err == nil:
		return sub.SubscriptionID, nil
	case errors.Is(err, ErrNotFound):
		return providerProductID, nil
	default:
		return "", billing.Internal("failed to resolve paypal plan", err)
	}
}

func (s *Service) storeError(err error, msg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return billing.NotFound("Subscription does not exist")
	case errors.Is(err, ErrDuplicate):
		return billing.Conflict(msg, err)
	default:
		return billing.Internal(msg, err)
	}
}

// mergePlans replaces the plan list, keeping the creation time of plans that
// already existed.
func mergePlans(current, next []Plan, now time.Time) []Plan {
	created := make(map[string]time.Time, len(current))
	for _, p := range current {
		created[p.PlanID] = p.CreatedAt
	}
	out := make([]Plan, len(next))
	for i, p := range next {
		p.CreatedAt = now
		if t, ok := created[p.PlanID]; ok && !t.IsZero() {
			p.CreatedAt = t
		}
		p.UpdatedAt = now
		out[i] = p
	}
	return out
}
