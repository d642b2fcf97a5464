// Package provider fetches raw option chains from a broker, a recorded
// archive or a deterministic generator.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

// Request selects one option chain.
type Request struct {
	Symbol string
	// ExpiryIndex picks from the ascending expiry list; out of range means 0.
	ExpiryIndex int
}

// Provider is a source of raw option chains.
type Provider interface {
	Name() string
	Expiries(ctx context.Context, symbol string) ([]string, error)
	Chain(ctx context.Context, req Request) (*gex.RawChain, error)
}

// Reloader is implemented by providers that can switch their backing data.
type Reloader interface {
	Reload(ctx context.Context, date string) (*ReloadResult, error)
}

// Rewinder is implemented by providers with playback positions.
type Rewinder interface {
	// Rewind moves the positions of symbol, or of every symbol when it is
	// empty, back to the start and returns how many were moved.
	Rewind(symbol string) int
}

// New builds the provider chain selected by cfg.Provider.Mode.
func New(cfg *config.Config, symbols config.Symbols, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider.Mode {
	case config.ModeLive:
		live := NewDhan(DhanOptions{
			BaseURL:     cfg.Provider.BaseURL,
			ClientID:    cfg.Provider.ClientID,
			AccessToken: cfg.Provider.AccessToken,
			Timeout:     cfg.Provider.Timeout(),
			RetryCount:  cfg.Provider.RetryCount,
			RetryDelay:  cfg.Provider.RetryDelay(),
			MinInterval: cfg.Provider.MinInterval(),
			Breaker:     cfg.Breaker,
		}, symbols, logger)
		if !cfg.Provider.Fallback {
			return live, nil
		}
		return NewFallback(live, NewSynthetic(symbols, cfg.Synthetic.Seed, cfg.Synthetic.Strikes), logger), nil

	case config.ModeSynthetic:
		return NewSynthetic(symbols, cfg.Synthetic.Seed, cfg.Synthetic.Strikes), nil

	case config.ModeReplay:
		return OpenReplay(cfg.Replay, symbols, logger)

	default:
		return nil, fmt.Errorf("unknown provider mode: %s", cfg.Provider.Mode)
	}
}

func expiryAt(expiries []string, index int) string {
	if index < 0 || index >= len(expiries) {
		index = 0
	}
	return expiries[index]
}
