package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/gex"
)

func chain(symbol, expiry string, price float64) *gex.RawChain {
	return &gex.RawChain{
		Symbol:          symbol,
		UnderlyingPrice: price,
		Expiry:          expiry,
		Source:          "dhan",
		Records: []gex.RawRecord{
			{"strike_price": 24500, "option_type": "CE", "oi": 100, "iv": 14.2},
		},
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			rec, err := NewRecorder(dir, compress, zap.NewNop())
			require.NoError(t, err)
			defer rec.Close()

			day := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
			for i, price := range []float64{24500, 24510, 24490} {
				_, _, err := rec.Append(chain("NIFTY", "2025-01-09", price), day.Add(time.Duration(i)*time.Minute))
				require.NoError(t, err)
			}
			_, _, err = rec.Append(chain("NIFTY", "2025-01-16", 24520), day)
			require.NoError(t, err)
			_, _, err = rec.Append(chain("BANKNIFTY", "2025-01-08", 52000), day)
			require.NoError(t, err)

			loader, err := NewMemoryLoader(dir, "2025-01-06", zap.NewNop())
			require.NoError(t, err)
			defer loader.Close()

			assert.Equal(t, []string{"BANKNIFTY", "NIFTY"}, loader.Symbols())

			exp, err := loader.Expiries("NIFTY")
			require.NoError(t, err)
			assert.Equal(t, []string{"2025-01-09", "2025-01-16"}, exp)

			n, err := loader.Length("NIFTY", "2025-01-09")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			e, err := loader.Get(context.Background(), "NIFTY", "2025-01-09", 1)
			require.NoError(t, err)
			assert.Equal(t, 24510.0, e.Chain.UnderlyingPrice)
			assert.Equal(t, day.Add(time.Minute), e.RecordedAt)
			require.Len(t, e.Chain.Records, 1)
			assert.Equal(t, int64(100), gex.Normalize(e.Chain.Records)[24500].CallOI)

			_, err = loader.Get(context.Background(), "NIFTY", "2025-01-09", 3)
			assert.ErrorIs(t, err, ErrIndexOutOfBounds)
			_, err = loader.Get(context.Background(), "SENSEX", "2025-01-09", 0)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryLoaderEmptyDay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2025-01-06"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-01-06", "notes.txt"), []byte("x"), 0o644))

	_, err := NewMemoryLoader(dir, "2025-01-06", zap.NewNop())
	assert.Error(t, err)
}

func TestMemoryLoaderSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	day := filepath.Join(dir, "2025-01-06")
	require.NoError(t, os.MkdirAll(day, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(day, "FINNIFTY.jsonl"), []byte("{not json\n"), 0o644))

	rec, err := NewRecorder(dir, false, zap.NewNop())
	require.NoError(t, err)
	_, _, err = rec.Append(chain("NIFTY", "2025-01-09", 24500), time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	loader, err := NewMemoryLoader(dir, "2025-01-06", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"NIFTY"}, loader.Symbols())
}

func TestIndexCache(t *testing.T) {
	t.Run("exhaust", func(t *testing.T) {
		c := NewIndexCache(CacheModeExhaust)
		for want := 0; want < 3; want++ {
			idx, done := c.GetAndAdvance("NIFTY/x", 3)
			assert.False(t, done)
			assert.Equal(t, want, idx)
		}
		_, done := c.GetAndAdvance("NIFTY/x", 3)
		assert.True(t, done)
	})

	t.Run("rotation", func(t *testing.T) {
		c := NewIndexCache(CacheModeRotation)
		var got []int
		for i := 0; i < 5; i++ {
			idx, done := c.GetAndAdvance("NIFTY/x", 2)
			assert.False(t, done)
			got = append(got, idx)
		}
		assert.Equal(t, []int{0, 1, 0, 1, 0}, got)
	})

	t.Run("reset by prefix", func(t *testing.T) {
		c := NewIndexCache(CacheModeExhaust)
		c.GetAndAdvance("NIFTY/a", 5)
		c.GetAndAdvance("NIFTY/b", 5)
		c.GetAndAdvance("BANKNIFTY/a", 5)
		assert.Equal(t, 2, c.Reset("NIFTY/"))
		assert.Equal(t, 0, c.GetIndex("NIFTY/a"))
		assert.Equal(t, 1, c.GetIndex("BANKNIFTY/a"))
		assert.Equal(t, 1, c.Reset(""))
	})
}

func TestDetectLatestDate(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"2025-01-03", "2025-01-06", "2025-01-07", "scratch"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}
	// empty folders do not count
	for _, d := range []string{"2025-01-03", "2025-01-06", "scratch"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, d, "NIFTY.jsonl"), []byte("\n"), 0o644))
	}

	got, err := DetectLatestDate(dir)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", got)

	got, err = ResolveDate(dir, "latest")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", got)

	got, err = ResolveDate(dir, "2025-01-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", got)

	_, err = ResolveDate(dir, "yesterday")
	assert.Error(t, err)

	_, err = DetectLatestDate(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReloadableLoaderSwap(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, false, zap.NewNop())
	require.NoError(t, err)
	_, _, err = rec.Append(chain("NIFTY", "2025-01-09", 24500), time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, _, err = rec.Append(chain("BANKNIFTY", "2025-01-09", 52000), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	first, err := NewMemoryLoader(dir, "2025-01-06", zap.NewNop())
	require.NoError(t, err)
	second, err := NewMemoryLoader(dir, "2025-01-07", zap.NewNop())
	require.NoError(t, err)

	r := NewReloadableLoader(first)
	assert.Equal(t, []string{"NIFTY"}, r.Symbols())

	old := r.Swap(second)
	assert.Same(t, first, old)
	assert.Equal(t, []string{"BANKNIFTY"}, r.Symbols())
}
