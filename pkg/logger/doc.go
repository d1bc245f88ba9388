// Package logger builds *slog.Logger instances for the service and provides
// attribute helpers that keep key names consistent across packages.
//
// New takes functional options for format, level, output and default
// attributes. ContextExtractor callbacks inject request scoped values, such
// as the request id, into every record logged with a context:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.AppName),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "transaction attached",
//		logger.SubscriberID(id),
//		logger.Platform("android-playstore"),
//	)
package logger
