// Package app wires configuration, storage, provider clients and services
// into a runnable process.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/cboard-org/cboard-billing/api"
	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/billing/appstore"
	"github.com/cboard-org/cboard-billing/pkg/billing/paypal"
	"github.com/cboard-org/cboard-billing/pkg/billing/playstore"
	"github.com/cboard-org/cboard-billing/pkg/config"
	"github.com/cboard-org/cboard-billing/pkg/httpserver"
	"github.com/cboard-org/cboard-billing/pkg/jwt"
	"github.com/cboard-org/cboard-billing/pkg/logger"
	"github.com/cboard-org/cboard-billing/pkg/mongo"
	"github.com/cboard-org/cboard-billing/pkg/ratelimiter"
	"github.com/cboard-org/cboard-billing/pkg/redis"
	"github.com/cboard-org/cboard-billing/svc/catalog"
	"github.com/cboard-org/cboard-billing/svc/subscriber"
)

// App is the assembled service.
type App struct {
	cfg         Config
	logger      *slog.Logger
	handler     http.Handler
	server      *httpserver.Server
	scheduler   *Scheduler
	subscribers *subscriber.Service
	catalog     *catalog.Service
	closers     []io.Closer
}

// Stores groups the persistence backends. The zero value is filled according
// to Config.StorageDriver.
type Stores struct {
	Subscribers subscriber.Store
	Catalog     catalog.Store
	RateLimit   ratelimiter.Store
	Checks      []httpserver.Check
	Closers     []io.Closer
}

// Providers groups the purchase provider clients. Nil members disable the
// corresponding platform.
type Providers struct {
	Play     *playstore.Client
	AppStore *appstore.Client
	PayPal   *paypal.Client
}

// New builds the application from cfg, connecting to storage and providers
// as configured in the environment.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	providers := OpenProviders(ctx, log)

	var srvCfg httpserver.Config
	if err := config.Load(&srvCfg); err != nil {
		closeAll(stores.Closers, log)
		return nil, err
	}

	a, err := Assemble(cfg, log, stores, providers)
	if err != nil {
		closeAll(stores.Closers, log)
		return nil, err
	}
	a.server = httpserver.NewFromConfig(srvCfg, httpserver.WithLogger(log))
	return a, nil
}

// Assemble wires services, router and scheduler on top of stores and
// providers.
func Assemble(cfg Config, log *slog.Logger, stores Stores, providers Providers) (*App, error) {
	var dispatchOpts []billing.DispatcherOption
	catalogOpts := []catalog.Option{catalog.WithLogger(log)}
	if providers.Play != nil {
		dispatchOpts = append(dispatchOpts, billing.WithAndroid(providers.Play))
		catalogOpts = append(catalogOpts, catalog.WithPlaySource(providers.Play))
	}
	if providers.AppStore != nil {
		dispatchOpts = append(dispatchOpts, billing.WithAppStore(providers.AppStore))
	}
	if providers.PayPal != nil {
		dispatchOpts = append(dispatchOpts, billing.WithPayPal(providers.PayPal))
		catalogOpts = append(catalogOpts, catalog.WithPlanSource(providers.PayPal))
	}
	dispatcher := billing.NewDispatcher(append(dispatchOpts,
		billing.WithTimeout(cfg.ProviderTimeout),
		billing.WithLogger(log),
	)...)

	catalogSvc := catalog.NewService(stores.Catalog, catalogOpts...)
	subscriberSvc := subscriber.NewService(stores.Subscribers, dispatcher,
		subscriber.WithProductResolver(catalogSvc),
		subscriber.WithRefreshOnRead(cfg.RefreshOnRead),
		subscriber.WithLogger(log),
	)

	tokens, err := jwt.New(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}

	routerOpts := []api.Option{
		api.WithLogger(log),
		api.WithReadinessChecks(cfg.ReadyTimeout, stores.Checks...),
		api.WithAllowedOrigins(cfg.AllowedOrigins...),
	}
	if cfg.RateLimitEnabled {
		limiter, err := ratelimiter.New(stores.RateLimit, cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		routerOpts = append(routerOpts, api.WithRateLimiter(limiter))
	}

	scheduler := NewScheduler(log)
	if err := scheduler.Add("refresh_subscribers", cfg.RefreshCron, func(ctx context.Context) error {
		_, err := subscriberSvc.RefreshAll(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if providers.Play != nil {
		if err := scheduler.Add("sync_catalog", cfg.SyncCron, func(ctx context.Context) error {
			_, err := catalogSvc.Sync(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:         cfg,
		logger:      log,
		handler:     api.NewRouter(subscriberSvc, catalogSvc, tokens, routerOpts...),
		scheduler:   scheduler,
		subscribers: subscriberSvc,
		catalog:     catalogSvc,
		closers:     stores.Closers,
	}, nil
}

// Handler returns the HTTP handler of the application.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs scheduled jobs until ctx is cancelled or the
// process is signalled, then releases every resource.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("app: server not configured, use New")
	}
	defer closeAll(a.closers, a.logger)

	a.scheduler.Start()
	runErr := a.server.Run(ctx, a.handler)

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ProviderTimeout)
	defer cancel()
	a.scheduler.Stop(stopCtx)
	return runErr
}

// OpenStores connects the storage backends selected by cfg.StorageDriver.
func OpenStores(ctx context.Context, cfg Config, log *slog.Logger) (Stores, error) {
	if cfg.StorageDriver == StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return Stores{
			Subscribers: subscriber.NewMemoryStore(),
			Catalog:     catalog.NewMemoryStore(),
			RateLimit:   ratelimiter.NewMemoryStore(),
		}, nil
	}

	var mongoCfg mongo.Config
	if err := config.Load(&mongoCfg); err != nil {
		return Stores{}, err
	}
	db, err := mongo.NewWithDatabase(ctx, mongoCfg)
	if err != nil {
		return Stores{}, err
	}
	closers := []io.Closer{mongoCloser{db.Client()}}

	subscriberStore := subscriber.NewMongoStore(db)
	catalogStore := catalog.NewMongoStore(db)
	if err := errors.Join(subscriberStore.EnsureIndexes(ctx), catalogStore.EnsureIndexes(ctx)); err != nil {
		closeAll(closers, log)
		return Stores{}, err
	}

	stores := Stores{
		Subscribers: subscriberStore,
		Catalog:     catalogStore,
		RateLimit:   ratelimiter.NewMemoryStore(),
		Checks:      []httpserver.Check{{Name: "mongo", Fn: mongo.Healthcheck(db.Client())}},
		Closers:     closers,
	}

	if cfg.RateLimitEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			closeAll(closers, log)
			return Stores{}, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			closeAll(closers, log)
			return Stores{}, err
		}
		stores.RateLimit = ratelimiter.NewRedisStore(client, "")
		stores.Checks = append(stores.Checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		stores.Closers = append(stores.Closers, client)
	}
	return stores, nil
}

// OpenProviders creates the provider clients whose credentials are present.
// A provider that fails to initialize is logged and left disabled so the
// other platforms keep working.
func OpenProviders(ctx context.Context, log *slog.Logger) Providers {
	var p Providers

	var playCfg playstore.Config
	if err := config.Load(&playCfg); err != nil {
		log.Warn("play store config invalid", logger.Platform(billing.PlatformAndroidPlaystore.String()), logger.Error(err))
	} else if client, err := playstore.New(ctx, playCfg); err != nil {
		log.Warn("play store verifier disabled", logger.Platform(billing.PlatformAndroidPlaystore.String()), logger.Error(err))
	} else {
		p.Play = client
	}

	var appleCfg appstore.Config
	if err := config.Load(&appleCfg); err != nil {
		log.Warn("app store config invalid", logger.Platform(billing.PlatformAppStore.String()), logger.Error(err))
	} else if appleCfg.SharedSecret == "" && !appleCfg.ServerAPIEnabled() {
		log.Warn("app store verifier disabled, no credentials", logger.Platform(billing.PlatformAppStore.String()))
	} else if client, err := appstore.New(appleCfg); err != nil {
		log.Warn("app store verifier disabled", logger.Platform(billing.PlatformAppStore.String()), logger.Error(err))
	} else {
		p.AppStore = client
	}

	var paypalCfg paypal.Config
	if err := config.Load(&paypalCfg); err != nil {
		log.Warn("paypal config invalid", logger.Platform(billing.PlatformPayPal.String()), logger.Error(err))
	} else if client, err := paypal.New(paypalCfg, nil); err != nil {
		log.Warn("paypal verifier disabled", logger.Platform(billing.PlatformPayPal.String()), logger.Error(err))
	} else {
		p.PayPal = client
	}
	return p
}

type mongoCloser struct {
	client *mongodrv.Client
}

func (m mongoCloser) Close() error {
	return m.client.Disconnect(context.Background())
}

func closeAll(closers []io.Closer, log *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Error("failed to release resource", logger.Error(err))
		}
	}
}
