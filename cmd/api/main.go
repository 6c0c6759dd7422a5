package main

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/app"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/di"
	"github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/api/routers"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"time"
)

const (
	appName = "coin-settlement"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	opts := []log.LoggerOption{log.WithConsoleLogger(), log.WithLevelName(cfg.Logging.Level)}
	if cfg.Logging.File != "" {
		opts = append(opts, log.WithFileLogger(cfg.Logging.File))
	}
	log.Init(appName, opts...)
	logger := log.GetLogger()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg(errors.ErrorFailedToConnectToTheDatabase)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("failed to close dependencies")
		}
	}()

	expiry := app.NewExpiryProcess(container.ExpireTransactionsInteractor, cfg.Process)

	router := routers.NewRouter(container)
	service := app.NewService(cfg, expiry)
	service.Run(ctx, router)
}
