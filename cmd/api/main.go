package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cboard-org/cboard-billing/app"
	"github.com/cboard-org/cboard-billing/pkg/config"
	"github.com/cboard-org/cboard-billing/pkg/logger"
	"github.com/cboard-org/cboard-billing/pkg/requestid"
)

func main() {
	var cfg app.Config
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to build application", logger.Error(err))
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		log.Error("application stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("application stopped")
}
