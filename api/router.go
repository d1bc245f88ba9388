package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cboard-org/cboard-billing/handler"
	"github.com/cboard-org/cboard-billing/pkg/binder"
	"github.com/cboard-org/cboard-billing/pkg/httpserver"
	"github.com/cboard-org/cboard-billing/pkg/jwt"
	"github.com/cboard-org/cboard-billing/pkg/logger"
	"github.com/cboard-org/cboard-billing/pkg/requestid"
)

// NewRouter builds the HTTP handler of the service.
// Panics if a service or the token service is nil.
func NewRouter(subscribers SubscriberService, subscriptions CatalogService, tokens *jwt.Service, opts ...Option) http.Handler {
	if subscribers == nil {
		panic("api: SubscriberService is required")
	}
	if subscriptions == nil {
		panic("api: CatalogService is required")
	}
	if tokens == nil {
		panic("api: jwt.Service is required")
	}
	o := &options{
		logger:       slog.New(slog.DiscardHandler),
		checkTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger.With(logger.Component("api"))
	onError := handler.NewErrorHandler(log)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(log))
	r.Use(chimiddleware.Recoverer)
	if len(o.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestid.Header},
			ExposedHeaders: []string{requestid.Header, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			MaxAge:         300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.JSONError(handler.ErrNotFound).Render(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.JSONError(handler.ErrMethodNotAllowed).Render(w, r)
	})

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, o.checkTimeout, o.checks...))

	sh := subscriberHandlers{svc: subscribers}
	ch := subscriptionHandlers{svc: subscriptions}

	r.Group(func(r chi.Router) {
		r.Use(authenticate(tokens, log))

		r.Route("/subscriber", func(r chi.Router) {
			r.Post("/", handler.Wrap(sh.create,
				handler.WithBinders[handler.Context, createSubscriberRequest](bindJSON...),
				handler.WithErrorHandler[handler.Context, createSubscriberRequest](onError),
			))
			r.Get("/{userId}", handler.Wrap(sh.get,
				handler.WithBinders[handler.Context, getSubscriberRequest](bindPath...),
				handler.WithErrorHandler[handler.Context, getSubscriberRequest](onError),
			))
			r.Patch("/{id}", handler.Wrap(sh.update,
				handler.WithBinders[handler.Context, updateSubscriberRequest](bindPathJSON...),
				handler.WithErrorHandler[handler.Context, updateSubscriberRequest](onError),
			))
			r.With(requireAdmin).Delete("/{id}", handler.Wrap(sh.delete,
				handler.WithBinders[handler.Context, subscriberIDRequest](bindPath...),
				handler.WithErrorHandler[handler.Context, subscriberIDRequest](onError),
			))

			transaction := r.With()
			if o.limiter != nil {
				transaction = r.With(rateLimit(o.limiter, log))
			}
			transaction.Post("/{id}/transaction", handler.Wrap(sh.attachTransaction,
				handler.WithBinders[handler.Context, transactionRequest](binder.Path(chi.URLParam), binder.JSON()),
				handler.WithErrorHandler[handler.Context, transactionRequest](transactionErrorHandler(log)),
			))
		})

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", handler.Wrap(ch.list,
				handler.WithBinders[handler.Context, listSubscriptionsRequest](bindQuery...),
				handler.WithErrorHandler[handler.Context, listSubscriptionsRequest](onError),
			))
			r.Get("/{subscriptionId}", handler.Wrap(ch.get,
				handler.WithBinders[handler.Context, subscriptionIDRequest](bindPath...),
				handler.WithErrorHandler[handler.Context, subscriptionIDRequest](onError),
			))

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/sync", handler.Wrap(ch.sync,
					handler.WithErrorHandler[handler.Context, struct{}](onError),
				))
				r.Post("/{subscriptionId}", handler.Wrap(ch.create,
					handler.WithBinders[handler.Context, createSubscriptionRequest](bindPathJSON...),
					handler.WithErrorHandler[handler.Context, createSubscriptionRequest](onError),
				))
				r.Put("/{subscriptionId}", handler.Wrap(ch.update,
					handler.WithBinders[handler.Context, updateSubscriptionRequest](bindPathJSON...),
					handler.WithErrorHandler[handler.Context, updateSubscriptionRequest](onError),
				))
				r.Delete("/{subscriptionId}", handler.Wrap(ch.delete,
					handler.WithBinders[handler.Context, subscriptionIDRequest](bindPath...),
					handler.WithErrorHandler[handler.Context, subscriptionIDRequest](onError),
				))
			})
		})
	})

	return r
}
