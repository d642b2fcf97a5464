package provider

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

// Fallback serves from primary and switches to secondary on any failure
// other than an unknown symbol or a cancelled request. The returned chain's
// Source names the provider that actually answered.
type Fallback struct {
	primary   Provider
	secondary Provider
	logger    *zap.Logger

	// OnFallback, when set, is called each time secondary is used.
	OnFallback func(symbol string, err error)
}

var _ Provider = (*Fallback)(nil)

func NewFallback(primary, secondary Provider, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *Fallback) Expiries(ctx context.Context, symbol string) ([]string, error) {
	expiries, err := f.primary.Expiries(ctx, symbol)
	if !f.shouldFallBack(err) {
		return expiries, err
	}
	f.fellBack(symbol, err)
	return f.secondary.Expiries(ctx, symbol)
}

func (f *Fallback) Chain(ctx context.Context, req Request) (*gex.RawChain, error) {
	chain, err := f.primary.Chain(ctx, req)
	if !f.shouldFallBack(err) {
		return chain, err
	}
	f.fellBack(req.Symbol, err)
	return f.secondary.Chain(ctx, req)
}

func (f *Fallback) shouldFallBack(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, config.ErrUnknownSymbol) && !errors.Is(err, context.Canceled)
}

func (f *Fallback) fellBack(symbol string, err error) {
	f.logger.Warn("primary provider failed, using fallback",
		zap.String("symbol", symbol),
		zap.String("primary", f.primary.Name()),
		zap.String("fallback", f.secondary.Name()),
		zap.Error(err),
	)
	if f.OnFallback != nil {
		f.OnFallback(symbol, err)
	}
}
