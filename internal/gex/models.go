// Package gex computes dealer gamma and delta exposure from an option chain
// snapshot. It is pure: no I/O, no logging, no shared state.
package gex

import "time"

// RawRecord is a single contract (or strike) record as delivered by a broker,
// with whatever field names that broker uses.
type RawRecord map[string]any

// RawChain is an option chain snapshot handed over by a data provider.
type RawChain struct {
	Symbol          string      `json:"symbol"`
	UnderlyingPrice float64     `json:"underlying_price"`
	Expiry          string      `json:"expiry"`
	Expiries        []string    `json:"expiries,omitempty"`
	Records         []RawRecord `json:"records"`
	Source          string      `json:"source"`
	FetchedAt       time.Time   `json:"fetched_at"`
}

// StrikeRecord is the canonical per-strike quote row.
type StrikeRecord struct {
	Strike     float64 `json:"strike"`
	CallOI     int64   `json:"call_oi"`
	PutOI      int64   `json:"put_oi"`
	CallIV     float64 `json:"call_iv"`
	PutIV      float64 `json:"put_iv"`
	CallLTP    float64 `json:"call_ltp"`
	PutLTP     float64 `json:"put_ltp"`
	CallVolume int64   `json:"call_volume"`
	PutVolume  int64   `json:"put_volume"`
}

// MarketSnapshot is the immutable input of an analysis.
// Strikes are sorted ascending and unique.
type MarketSnapshot struct {
	UnderlyingPrice float64
	ValuationTime   time.Time
	ExpiryDate      time.Time
	RiskFreeRate    float64
	Strikes         []StrikeRecord
}

// GreeksRow augments a strike with per-leg gamma and delta.
type GreeksRow struct {
	StrikeRecord
	CallGamma float64 `json:"call_gamma"`
	PutGamma  float64 `json:"put_gamma"`
	CallDelta float64 `json:"call_delta"`
	PutDelta  float64 `json:"put_delta"`
}

// ExposureRow carries the dealer hedging exposure of one strike.
type ExposureRow struct {
	GreeksRow
	CallGEX         float64 `json:"call_gex"`
	PutGEX          float64 `json:"put_gex"`
	NetGEX          float64 `json:"net_gex"`
	NetGEXB         float64 `json:"net_gex_b"`
	CallDEX         float64 `json:"call_dex"`
	PutDEX          float64 `json:"put_dex"`
	NetDEX          float64 `json:"net_dex"`
	NetDEXB         float64 `json:"net_dex_b"`
	HedgingPressure float64 `json:"hedging_pressure"`
	TotalVolume     int64   `json:"total_volume"`
}

// GEXBias classifies the near-the-money net gamma exposure.
type GEXBias string

const (
	GEXStrongBullish GEXBias = "STRONG_BULLISH"
	GEXVolatile      GEXBias = "VOLATILE"
	GEXNeutral       GEXBias = "NEUTRAL"
)

// DEXBias classifies the near-the-money net delta exposure.
type DEXBias string

const (
	DEXBullish DEXBias = "BULLISH"
	DEXBearish DEXBias = "BEARISH"
)

// FlowSummary is the near-ATM directional/volatility read.
type FlowSummary struct {
	GEXNearTotal float64 `json:"gex_near_total"`
	DEXNearTotal float64 `json:"dex_near_total"`
	GEXBias      GEXBias `json:"gex_bias"`
	DEXBias      DEXBias `json:"dex_bias"`
	Combined     string  `json:"combined"`
}

// FlipZone brackets a sign change of net GEX between adjacent strikes.
type FlipZone struct {
	LowerStrike float64 `json:"lower_strike"`
	UpperStrike float64 `json:"upper_strike"`
}

// AtmInfo describes the strike nearest to the underlying.
type AtmInfo struct {
	Strike          float64 `json:"atm_strike"`
	StraddlePremium float64 `json:"atm_straddle_premium"`
}

// Totals are chain-wide sums in billions.
type Totals struct {
	CallGEXB float64 `json:"call_gex_b"`
	PutGEXB  float64 `json:"put_gex_b"`
	NetGEXB  float64 `json:"net_gex_b"`
	NetDEXB  float64 `json:"net_dex_b"`
	// Bias is BULLISH when total net GEX is positive, VOLATILE otherwise.
	Bias string `json:"bias"`
}

// Result is the output bundle of one analysis.
type Result struct {
	Rows         []ExposureRow `json:"rows"`
	Flow         FlowSummary   `json:"flow"`
	FlipZones    []FlipZone    `json:"flip_zones"`
	ATM          AtmInfo       `json:"atm"`
	Totals       Totals        `json:"totals"`
	DaysToExpiry int           `json:"days_to_expiry"`
	TimeToExpiry float64       `json:"time_to_expiry"`
}
