package gex

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FlatAliasesMerge(t *testing.T) {
	records := []RawRecord{
		{"strike_price": 24500.0, "option_type": "CALL", "oi": 1200.0, "iv": 14.5, "ltp": 120.5, "volume": 300.0},
		{"strikePrice": 24500, "optionType": "PE", "open_interest": 900, "implied_volatility": 0.18, "last_price": 98.0, "totalTradedVolume": 150},
		{"strike": "24,600.00", "type": "ce", "openInterest": "450", "impliedVolatility": "0", "lastPrice": "70.25"},
	}

	got, dropped := NewNormalizer().Normalize(records)
	require.Equal(t, 0, dropped)
	require.Len(t, got, 2)

	atm := got[24500]
	assert.Equal(t, StrikeRecord{
		Strike: 24500, CallOI: 1200, PutOI: 900,
		CallIV: 0.145, PutIV: 0.18,
		CallLTP: 120.5, PutLTP: 98,
		CallVolume: 300, PutVolume: 150,
	}, atm)

	next := got[24600]
	assert.Equal(t, int64(450), next.CallOI)
	assert.Equal(t, DefaultIV, next.CallIV)
	assert.Equal(t, 70.25, next.CallLTP)
	// unseen put side keeps defaults
	assert.Equal(t, int64(0), next.PutOI)
	assert.Equal(t, DefaultIV, next.PutIV)
}

func TestNormalize_DropsBadRecords(t *testing.T) {
	records := []RawRecord{
		{"strike_price": 0, "option_type": "CE", "oi": 10},
		{"strike_price": -50, "option_type": "CE", "oi": 10},
		{"strike_price": "abc", "option_type": "CE", "oi": 10},
		{"strike_price": 100, "option_type": "CE", "oi": "lots"},
		{"strike_price": 100, "option_type": "CE", "oi": -5},
		{"strike_price": 100, "option_type": "FUT", "oi": 5},
		{"strike_price": 24500, "option_type": "CE", "oi": 1e30, "iv": 15},
		{"strike_price": 24500, "option_type": "CE", "oi": 10, "volume": 1e25},
		{"foo": "bar"},
		nil,
		{"strike_price": 200, "option_type": "PE", "oi": 7},
	}

	got, dropped := NewNormalizer().Normalize(records)
	assert.Equal(t, 10, dropped)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[200].PutOI)
}

func TestNormalize_JSONNumbers(t *testing.T) {
	var records []RawRecord
	dec := json.NewDecoder(strings.NewReader(`[{"strike_price": 101.5, "option_type": "PUT", "oi": 42, "iv": 22}]`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&records))

	got := Normalize(records)
	require.Contains(t, got, 101.5)
	assert.Equal(t, int64(42), got[101.5].PutOI)
	assert.InDelta(t, 0.22, got[101.5].PutIV, 1e-12)
}

func TestNormalize_NestedShapes(t *testing.T) {
	records := []RawRecord{
		{
			"strike": "24500.000000",
			"ce":     map[string]any{"oi": 1000.0, "implied_volatility": 13.2, "last_price": 110.0, "volume": 20.0},
			"pe":     map[string]any{"oi": 800.0, "implied_volatility": 14.1, "last_price": 95.0, "volume": 10.0},
		},
		{
			"strike_price": 24600.0,
			"call_options": map[string]any{
				"market_data":   map[string]any{"ltp": 60.0, "oi": 500.0, "volume": 5.0},
				"option_greeks": map[string]any{"iv": 12.0, "delta": 0.4},
			},
		},
	}

	got, dropped := NewNormalizer().Normalize(records)
	require.Equal(t, 0, dropped)

	assert.Equal(t, int64(1000), got[24500].CallOI)
	assert.Equal(t, int64(800), got[24500].PutOI)
	assert.InDelta(t, 0.132, got[24500].CallIV, 1e-12)
	assert.InDelta(t, 0.141, got[24500].PutIV, 1e-12)

	assert.Equal(t, int64(500), got[24600].CallOI)
	assert.Equal(t, 60.0, got[24600].CallLTP)
	assert.InDelta(t, 0.12, got[24600].CallIV, 1e-12)
	assert.Equal(t, DefaultIV, got[24600].PutIV)
}

func TestNormalize_CustomParserOrder(t *testing.T) {
	// only nested: flat records are not applicable
	n := NewNormalizer(NestedParser{})
	got, dropped := n.Normalize([]RawRecord{{"strike_price": 100, "option_type": "CE", "oi": 1}})
	assert.Empty(t, got)
	assert.Equal(t, 1, dropped)
}

func TestNormalizeIV(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, DefaultIV},
		{-4, DefaultIV},
		{0.2, 0.2},
		{1, 1},
		{25, 0.25},
		{1.5, 0.015},
		{math.Inf(1), DefaultIV},
		{math.Inf(-1), DefaultIV},
		{math.NaN(), DefaultIV},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeIV(tt.in), 1e-12, "iv %v", tt.in)
	}
}
