package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/data"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

// Replay serves recorded chains in recording order, one step per request
// and per symbol/expiry.
type Replay struct {
	dir     string
	archive *data.ReloadableLoader
	cursor  *data.IndexCache
	symbols config.Symbols
	logger  *zap.Logger

	reloadMu sync.Mutex
	stateMu  sync.RWMutex
	date     string
	loadedAt time.Time
}

var (
	_ Provider = (*Replay)(nil)
	_ Reloader = (*Replay)(nil)
	_ Rewinder = (*Replay)(nil)
)

// OpenReplay loads the configured recording day (or the latest one).
func OpenReplay(cfg config.ReplayConfig, symbols config.Symbols, logger *zap.Logger) (*Replay, error) {
	date, err := data.ResolveDate(cfg.Directory, cfg.Date)
	if err != nil {
		return nil, fmt.Errorf("resolving replay date: %w", err)
	}
	loader, err := data.NewMemoryLoader(cfg.Directory, date, logger)
	if err != nil {
		return nil, err
	}
	return NewReplay(cfg.Directory, date, loader, data.CacheMode(cfg.Mode), symbols, logger), nil
}

func NewReplay(dir, date string, archive data.Archive, mode data.CacheMode, symbols config.Symbols, logger *zap.Logger) *Replay {
	return &Replay{
		dir:      dir,
		archive:  data.NewReloadableLoader(archive),
		cursor:   data.NewIndexCache(mode),
		symbols:  symbols,
		logger:   logger,
		date:     date,
		loadedAt: time.Now(),
	}
}

func (r *Replay) Name() string { return "replay" }

// Date returns the loaded recording day.
func (r *Replay) Date() string {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.date
}

func (r *Replay) Expiries(_ context.Context, symbol string) ([]string, error) {
	sym, err := r.symbols.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	expiries, err := r.archive.Expiries(sym.Name)
	if errors.Is(err, data.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, sym.Name, ErrNoExpiries)
	}
	return expiries, err
}

func (r *Replay) Chain(ctx context.Context, req Request) (*gex.RawChain, error) {
	expiries, err := r.Expiries(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	symbol, _ := r.symbols.Lookup(req.Symbol)
	expiry := expiryAt(expiries, req.ExpiryIndex)

	length, err := r.archive.Length(symbol.Name, expiry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	key := data.DataKey(symbol.Name, expiry)
	idx, exhausted := r.cursor.GetAndAdvance(key, length)
	if exhausted {
		return nil, fmt.Errorf("%w: %s after %d chains: %w", ErrUnavailable, key, length, ErrExhausted)
	}

	entry, err := r.archive.Get(ctx, symbol.Name, expiry, idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	chain := entry.Chain
	chain.Expiry = expiry
	chain.Expiries = expiries
	chain.Source = r.Name()
	if chain.FetchedAt.IsZero() {
		chain.FetchedAt = entry.RecordedAt
	}

	r.logger.Debug("replaying chain",
		zap.String("key", key),
		zap.Int("index", idx),
		zap.Int("length", length),
	)
	return &chain, nil
}

// Close releases the loaded archive.
func (r *Replay) Close() error {
	return r.archive.Close()
}

func (r *Replay) Rewind(symbol string) int {
	prefix := ""
	if symbol != "" {
		prefix = data.DataKey(strings.ToUpper(symbol), "")
	}
	n := r.cursor.Reset(prefix)
	r.logger.Info("replay rewound", zap.String("symbol", symbol), zap.Int("positions", n))
	return n
}

// ReloadResult contains the result of a successful reload operation.
type ReloadResult struct {
	PreviousDate string    `json:"previous_date"`
	NewDate      string    `json:"new_date"`
	LoadedAt     time.Time `json:"loaded_at"`
	Symbols      []string  `json:"symbols"`
	CursorsReset int       `json:"cursors_reset"`
}

// Reload switches to another recording day and rewinds every cursor. On
// failure the current day stays loaded.
func (r *Replay) Reload(ctx context.Context, date string) (*ReloadResult, error) {
	if !r.reloadMu.TryLock() {
		return nil, fmt.Errorf("reload already in progress")
	}
	defer r.reloadMu.Unlock()

	previous := r.Date()
	r.logger.Info("starting replay reload",
		zap.String("previousDate", previous),
		zap.String("newDate", date),
	)

	if !data.IsDate(date) {
		return nil, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", date)
	}
	info, err := os.Stat(filepath.Join(r.dir, date))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("date not found: %s", date)
	}
	if err != nil {
		return nil, fmt.Errorf("checking date directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("date path is not a directory: %s", date)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next, err := data.NewMemoryLoader(r.dir, date, r.logger)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", date, err)
	}

	old := r.archive.Swap(next)
	reset := r.cursor.Reset("")

	r.stateMu.Lock()
	r.date = date
	r.loadedAt = time.Now()
	loadedAt := r.loadedAt
	r.stateMu.Unlock()

	if err := old.Close(); err != nil {
		r.logger.Warn("failed to close previous archive", zap.Error(err))
	}

	r.logger.Info("replay reload complete",
		zap.String("previousDate", previous),
		zap.String("newDate", date),
		zap.Int("cursorsReset", reset),
	)

	return &ReloadResult{
		PreviousDate: previous,
		NewDate:      date,
		LoadedAt:     loadedAt,
		Symbols:      next.Symbols(),
		CursorsReset: reset,
	}, nil
}
