// Package httpserver runs the API behind a net/http server with graceful
// shutdown and exposes liveness and readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Run returns when ctx is cancelled or the process receives SIGINT or
// SIGTERM. In-flight requests get the configured shutdown timeout to finish.
//
// ReadinessHandler takes named checks (mongo.Healthcheck, redis.Healthcheck)
// and answers 503 with the failing dependency when one of them errors.
package httpserver
