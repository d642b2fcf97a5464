package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/app"
	"github.com/dgnsrekt/gexdex/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv("GEXDEX_CONFIG"), os.Getenv("GEXDEX_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := app.SetupLogger("server", false, &cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("providerMode", cfg.Provider.Mode),
		zap.String("cacheBackend", cfg.Cache.Backend),
		zap.Bool("validateRequests", cfg.Server.ValidateRequest),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", zap.Error(err))
		return 1
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		return 1
	}
	return 0
}
