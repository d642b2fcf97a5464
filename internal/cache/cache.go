// Package cache memoizes analysis reports for a short TTL so repeated
// requests inside one refresh window do not hit the broker again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMiss is returned by Get when no live entry exists.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented TTL cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key identifies one analysis request.
func Key(symbol string, expiryIndex, strikesRange int) string {
	return fmt.Sprintf("gex:%s:%d:%d", strings.ToUpper(symbol), expiryIndex, strikesRange)
}

// NoopStore never holds anything.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopStore) Close() error { return nil }
