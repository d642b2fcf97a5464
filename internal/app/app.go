// Package app assembles the provider, cache and analyzer from a loaded
// configuration.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/cache"
	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/provider"
)

type App struct {
	Config   *config.Config
	Symbols  config.Symbols
	Provider provider.Provider
	Store    cache.Store
	Service  *analyzer.Service
	Registry *prometheus.Registry
	logger   *zap.Logger
}

// New wires every component selected by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	symbols := cfg.SymbolTable()

	p, err := provider.New(cfg, symbols, logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	store, err := OpenStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := analyzer.NewService(p, store, symbols, analyzer.Options{
		RiskFreeRate: cfg.Analysis.RiskFreeRate,
		StrikesRange: cfg.Analysis.StrikesRange,
		Budget:       cfg.Analysis.Budget(),
		CacheTTL:     cfg.Cache.TTL(),
	}, analyzer.NewMetrics(reg), logger)

	logger.Info("components ready",
		zap.String("provider", p.Name()),
		zap.String("cache", cfg.Cache.Backend),
		zap.Strings("symbols", symbols.Names()),
	)

	return &App{
		Config:   cfg,
		Symbols:  symbols,
		Provider: p,
		Store:    store,
		Service:  svc,
		Registry: reg,
		logger:   logger,
	}, nil
}

// OpenStore returns the report cache named by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return cache.NewMemoryStore(), nil
	case config.CacheRedis:
		store, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisKeyNS)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, nil
	case config.CacheNone:
		return cache.NoopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

func (a *App) Close() error {
	if c, ok := a.Provider.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing provider", zap.Error(err))
		}
	}
	return a.Store.Close()
}
