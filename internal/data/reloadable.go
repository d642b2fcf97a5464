package data

import (
	"context"
	"sync"
)

// ReloadableLoader wraps an Archive and allows atomic replacement, so a
// server can switch recording days without restarting.
type ReloadableLoader struct {
	mu      sync.RWMutex
	current Archive
}

var _ Archive = (*ReloadableLoader)(nil)

func NewReloadableLoader(initial Archive) *ReloadableLoader {
	return &ReloadableLoader{current: initial}
}

// Swap replaces the underlying archive and returns the old one.
// Caller is responsible for closing the old archive.
func (r *ReloadableLoader) Swap(next Archive) Archive {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.current
	r.current = next
	return old
}

func (r *ReloadableLoader) Get(ctx context.Context, symbol, expiry string, index int) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Get(ctx, symbol, expiry, index)
}

func (r *ReloadableLoader) Length(symbol, expiry string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Length(symbol, expiry)
}

func (r *ReloadableLoader) Expiries(symbol string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Expiries(symbol)
}

func (r *ReloadableLoader) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Symbols()
}

func (r *ReloadableLoader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Close()
}
