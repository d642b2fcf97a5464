package data

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("data not found")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// Archive provides random access to recorded option chains.
type Archive interface {
	// Get returns the chain recorded at index for symbol and expiry.
	Get(ctx context.Context, symbol, expiry string, index int) (*Entry, error)

	// Length returns the number of recorded chains.
	Length(symbol, expiry string) (int, error)

	// Expiries returns the recorded expiries of symbol in ascending order.
	Expiries(symbol string) ([]string, error)

	// Symbols returns all symbols with recorded data.
	Symbols() []string

	// Close releases any resources
	Close() error
}

// DataKey creates a unique key for symbol/expiry
func DataKey(symbol, expiry string) string {
	return symbol + "/" + expiry
}
