package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownSymbol is returned for an index that is not in the symbol table.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Provider modes
const (
	ModeLive      = "live"
	ModeSynthetic = "synthetic"
	ModeReplay    = "replay"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Replay playback modes
const (
	ReplayExhaust  = "exhaust"
	ReplayRotation = "rotation"
)

var (
	validModes         = []string{ModeLive, ModeSynthetic, ModeReplay}
	validCacheBackends = []string{CacheMemory, CacheRedis, CacheNone}
	validReplayModes   = []string{ReplayExhaust, ReplayRotation}
	validPriorities    = []string{"min", "low", "default", "high", "urgent"}
)

// SymbolConfig is a symbol entry as written in the config file.
type SymbolConfig struct {
	SecurityID     int     `mapstructure:"security_id"`
	Segment        string  `mapstructure:"segment"`
	StrikeStep     float64 `mapstructure:"strike_step"`
	ReferencePrice float64 `mapstructure:"reference_price"`
}

// Symbol describes one tradable index.
type Symbol struct {
	Name           string  `json:"name"`
	SecurityID     int     `json:"security_id"`
	Segment        string  `json:"segment"`
	StrikeStep     float64 `json:"strike_step"`
	ReferencePrice float64 `json:"reference_price"`
}

// Symbols is keyed by upper-case symbol name.
type Symbols map[string]Symbol

// DefaultSymbols returns the built-in NSE index table.
func DefaultSymbols() Symbols {
	return Symbols{
		"NIFTY":      {Name: "NIFTY", SecurityID: 13, Segment: "IDX_I", StrikeStep: 50, ReferencePrice: 24500},
		"BANKNIFTY":  {Name: "BANKNIFTY", SecurityID: 25, Segment: "IDX_I", StrikeStep: 100, ReferencePrice: 52000},
		"FINNIFTY":   {Name: "FINNIFTY", SecurityID: 27, Segment: "IDX_I", StrikeStep: 50, ReferencePrice: 22500},
		"MIDCPNIFTY": {Name: "MIDCPNIFTY", SecurityID: 29, Segment: "IDX_I", StrikeStep: 25, ReferencePrice: 12000},
	}
}

// Lookup resolves a symbol case-insensitively.
func (s Symbols) Lookup(name string) (Symbol, error) {
	sym, ok := s[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Symbol{}, fmt.Errorf("%w: %q", ErrUnknownSymbol, name)
	}
	return sym, nil
}

// Names returns the symbol names sorted.
func (s Symbols) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the symbols sorted by name.
func (s Symbols) List() []Symbol {
	out := make([]Symbol, 0, len(s))
	for _, name := range s.Names() {
		out = append(out, s[name])
	}
	return out
}
