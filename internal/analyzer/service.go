// Package analyzer runs the GEX/DEX pipeline on chains from a provider,
// with report caching, a wall-clock budget and metrics.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/cache"
	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/gex"
	"github.com/dgnsrekt/gexdex/internal/provider"
)

// Query selects one analysis.
type Query struct {
	Symbol      string
	ExpiryIndex int
	// StrikesRange is the number of strike steps kept each side of spot;
	// zero selects the configured default.
	StrikesRange int
	// Fresh bypasses the report cache.
	Fresh bool
}

// Report is a completed analysis with its provenance.
type Report struct {
	ID              string     `json:"id"`
	Symbol          string     `json:"symbol"`
	Source          string     `json:"source"`
	Expiry          string     `json:"expiry"`
	Expiries        []string   `json:"expiries,omitempty"`
	UnderlyingPrice float64    `json:"underlying_price"`
	StrikesRange    int        `json:"strikes_range"`
	StrikeStep      float64    `json:"strike_step"`
	GeneratedAt     time.Time  `json:"generated_at"`
	Dropped         int        `json:"dropped_records"`
	Cached          bool       `json:"cached"`
	Result          gex.Result `json:"result"`
}

type Options struct {
	RiskFreeRate float64
	StrikesRange int
	Budget       time.Duration
	CacheTTL     time.Duration
}

// Service is safe for concurrent use.
type Service struct {
	provider provider.Provider
	store    cache.Store
	symbols  config.Symbols
	opts     Options
	metrics  *Metrics
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(p provider.Provider, store cache.Store, symbols config.Symbols, opts Options, metrics *Metrics, logger *zap.Logger) *Service {
	if store == nil {
		store = cache.NoopStore{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if opts.StrikesRange <= 0 {
		opts.StrikesRange = gex.DefaultStrikesRange
	}
	if fb, ok := p.(*provider.Fallback); ok {
		fb.OnFallback = func(symbol string, _ error) {
			metrics.Fallbacks.WithLabelValues(symbol).Inc()
		}
	}
	return &Service{
		provider: p,
		store:    store,
		symbols:  symbols,
		opts:     opts,
		metrics:  metrics,
		now:      time.Now,
		logger:   logger,
	}
}

// Symbols returns the configured symbol table.
func (s *Service) Symbols() config.Symbols { return s.symbols }

// Provider returns the underlying data provider.
func (s *Service) Provider() provider.Provider { return s.provider }

// Analyze fetches a chain and runs the pipeline on it. Errors wrap
// config.ErrUnknownSymbol, provider.ErrUnavailable or gex.ErrValidation.
func (s *Service) Analyze(ctx context.Context, q Query) (*Report, error) {
	sym, err := s.symbols.Lookup(q.Symbol)
	if err != nil {
		s.metrics.Requests.WithLabelValues("", OutcomeUnknown).Inc()
		return nil, err
	}
	if q.StrikesRange <= 0 {
		q.StrikesRange = s.opts.StrikesRange
	}
	if q.ExpiryIndex < 0 {
		q.ExpiryIndex = 0
	}

	key := cache.Key(sym.Name, q.ExpiryIndex, q.StrikesRange)
	if !q.Fresh {
		if rep, ok := s.cached(ctx, sym.Name, key); ok {
			return rep, nil
		}
	}

	start := time.Now()
	if s.opts.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Budget)
		defer cancel()
	}

	chain, err := s.provider.Chain(ctx, provider.Request{Symbol: sym.Name, ExpiryIndex: q.ExpiryIndex})
	if err != nil {
		s.metrics.Requests.WithLabelValues(sym.Name, outcome(err)).Inc()
		return nil, fmt.Errorf("fetching %s chain: %w", sym.Name, err)
	}

	now := s.now()
	snap, dropped, err := gex.BuildSnapshot(chain, now, s.opts.RiskFreeRate)
	s.metrics.Dropped.WithLabelValues(sym.Name).Add(float64(dropped))
	if dropped > 0 {
		s.logger.Info("dropped unusable records",
			zap.String("symbol", sym.Name),
			zap.String("source", chain.Source),
			zap.Int("dropped", dropped),
			zap.Int("total", len(chain.Records)),
		)
	}
	if err != nil {
		s.metrics.Requests.WithLabelValues(sym.Name, OutcomeInvalid).Inc()
		return nil, fmt.Errorf("building %s snapshot: %w", sym.Name, err)
	}
	if _, ok := gex.ParseExpiry(chain.Expiry, now); !ok {
		s.logger.Warn("unparsable expiry, assuming one week",
			zap.String("symbol", sym.Name),
			zap.String("expiry", chain.Expiry),
		)
	}

	res, err := gex.Analyze(snap, gex.Params{StrikesRange: q.StrikesRange, StrikeStep: sym.StrikeStep})
	if err != nil {
		s.metrics.Requests.WithLabelValues(sym.Name, OutcomeInvalid).Inc()
		return nil, fmt.Errorf("analyzing %s: %w", sym.Name, err)
	}

	rep := &Report{
		ID:              uuid.NewString(),
		Symbol:          sym.Name,
		Source:          chain.Source,
		Expiry:          chain.Expiry,
		Expiries:        chain.Expiries,
		UnderlyingPrice: snap.UnderlyingPrice,
		StrikesRange:    q.StrikesRange,
		StrikeStep:      sym.StrikeStep,
		GeneratedAt:     now,
		Dropped:         dropped,
		Result:          *res,
	}

	elapsed := time.Since(start)
	s.metrics.Requests.WithLabelValues(sym.Name, OutcomeOK).Inc()
	s.metrics.Duration.WithLabelValues(sym.Name, chain.Source).Observe(elapsed.Seconds())
	s.metrics.NetGEX.WithLabelValues(sym.Name).Set(res.Totals.NetGEXB)

	s.logger.Debug("analysis complete",
		zap.String("id", rep.ID),
		zap.String("symbol", sym.Name),
		zap.String("source", chain.Source),
		zap.Int("strikes", len(res.Rows)),
		zap.Int("flipZones", len(res.FlipZones)),
		zap.String("flow", res.Flow.Combined),
		zap.Duration("elapsed", elapsed),
	)

	s.remember(ctx, key, rep)
	return rep, nil
}

func (s *Service) cached(ctx context.Context, symbol, key string) (*Report, bool) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.CacheMiss.WithLabelValues(symbol).Inc()
		return nil, false
	}
	var rep Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		s.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		s.metrics.CacheMiss.WithLabelValues(symbol).Inc()
		return nil, false
	}
	rep.Cached = true
	s.metrics.CacheHits.WithLabelValues(symbol).Inc()
	s.metrics.Requests.WithLabelValues(symbol, OutcomeCached).Inc()
	return &rep, true
}

func (s *Service) remember(ctx context.Context, key string, rep *Report) {
	if s.opts.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		s.logger.Warn("encoding report for cache", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, key, raw, s.opts.CacheTTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Expiries lists the expiries the provider offers for symbol.
func (s *Service) Expiries(ctx context.Context, symbol string) ([]string, error) {
	sym, err := s.symbols.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	if s.opts.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Budget)
		defer cancel()
	}
	expiries, err := s.provider.Expiries(ctx, sym.Name)
	if err != nil {
		return nil, fmt.Errorf("listing %s expiries: %w", sym.Name, err)
	}
	return expiries, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, gex.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, config.ErrUnknownSymbol):
		return OutcomeUnknown
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return OutcomeUnavailable
	}
	return OutcomeError
}
