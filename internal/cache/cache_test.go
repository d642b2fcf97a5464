package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "gex:NIFTY:1:12", Key("nifty", 1, 12))
	assert.NotEqual(t, Key("NIFTY", 0, 12), Key("NIFTY", 0, 10))
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	now = now.Add(59 * time.Second)
	_, err = m.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStoreSweepsOnSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Second))
	now = now.Add(2 * time.Second)
	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Second))
	assert.Equal(t, 1, m.Len())

	// zero ttl disables caching
	require.NoError(t, m.Set(ctx, "d", []byte("4"), 0))
	assert.Equal(t, 1, m.Len())
}

func TestNoopStore(t *testing.T) {
	var s Store = NoopStore{}
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "gexdex:")

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("gexdex:gex:NIFTY:0:12").SetVal(`{"id":"1"}`)
		got, err := store.Get(ctx, "gex:NIFTY:0:12")
		require.NoError(t, err)
		assert.Equal(t, `{"id":"1"}`, string(got))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("gexdex:missing").RedisNil()
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrMiss)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet("gexdex:broken").SetErr(redis.TxFailedErr)
		_, err := store.Get(ctx, "broken")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrMiss))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set", func(t *testing.T) {
		mock.ExpectSet("gexdex:k", []byte("v"), time.Minute).SetVal("OK")
		require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
