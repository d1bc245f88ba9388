// Package api exposes the subscriber and subscription catalog services over
// HTTP.
//
// Every route except the health probes requires a bearer JWT. Subscriber
// records are visible to their owner and to admins; catalog mutations and
// subscriber deletion are admin only. Transaction submissions always answer
// 200 with an {ok, data, error} envelope consumed by the client purchase
// plugin.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/httpserver"
	"github.com/cboard-org/cboard-billing/pkg/ratelimiter"
	"github.com/cboard-org/cboard-billing/svc/catalog"
	"github.com/cboard-org/cboard-billing/svc/subscriber"
)

// SubscriberService is implemented by *subscriber.Service.
type SubscriberService interface {
	Create(ctx context.Context, actor subscriber.Actor, in subscriber.CreateInput) (*subscriber.Subscriber, error)
	GetByUserID(ctx context.Context, actor subscriber.Actor, userID string) (*subscriber.Subscriber, error)
	AttachTransaction(ctx context.Context, actor subscriber.Actor, id string, in subscriber.TransactionInput) (*subscriber.Subscriber, error)
	Update(ctx context.Context, actor subscriber.Actor, id string, in subscriber.UpdateInput) (*subscriber.Subscriber, error)
	Delete(ctx context.Context, actor subscriber.Actor, id string) (*subscriber.Subscriber, error)
}

// CatalogService is implemented by *catalog.Service.
type CatalogService interface {
	Create(ctx context.Context, subscriptionID string, in catalog.Subscription) (*catalog.Subscription, error)
	Get(ctx context.Context, subscriptionID string) (*catalog.Subscription, error)
	Update(ctx context.Context, subscriptionID string, in catalog.UpdateInput) (*catalog.Subscription, error)
	Delete(ctx context.Context, subscriptionID string) (*catalog.Subscription, error)
	List(ctx context.Context, q catalog.ListQuery) (*catalog.Page, error)
	Sync(ctx context.Context) (*catalog.SyncReport, error)
}

// Option configures the router.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	limiter        *ratelimiter.Limiter
	checks         []httpserver.Check
	checkTimeout   time.Duration
	allowedOrigins []string
}

// WithLogger sets the logger for access logs and request errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRateLimiter limits transaction submissions per user.
func WithRateLimiter(l *ratelimiter.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithReadinessChecks registers the dependencies probed by /readyz.
func WithReadinessChecks(timeout time.Duration, checks ...httpserver.Check) Option {
	return func(o *options) {
		o.checkTimeout = timeout
		o.checks = append(o.checks, checks...)
	}
}

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *options) { o.allowedOrigins = append(o.allowedOrigins, origins...) }
}
