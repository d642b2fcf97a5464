package gex

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// MinIV is the volatility floor applied before any Greek is computed.
const MinIV = 0.01

func d1(S, K, T, r, sigma float64) float64 {
	return (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
}

// Gamma is the Black-Scholes gamma of one option (no dividend yield).
// Degenerate inputs (T <= 0 or sigma <= 0) yield 0.
// S and K must be positive; callers filter them upstream.
func Gamma(S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}
	return distuv.UnitNormal.Prob(d1(S, K, T, r, sigma)) / (S * sigma * math.Sqrt(T))
}

// Delta is the Black-Scholes delta of one option leg: N(d1) for calls,
// N(d1)-1 for puts. Degenerate inputs yield 0.
func Delta(S, K, T, r, sigma float64, side Side) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}
	nd1 := distuv.UnitNormal.CDF(d1(S, K, T, r, sigma))
	if side == Put {
		return nd1 - 1
	}
	return nd1
}

// ComputeGreeks evaluates both legs of every strike at underlying S and
// time to expiry T (years). Each leg's IV is floored at MinIV.
func ComputeGreeks(strikes []StrikeRecord, S, T, r float64) []GreeksRow {
	rows := make([]GreeksRow, len(strikes))
	for i, rec := range strikes {
		callIV := math.Max(rec.CallIV, MinIV)
		putIV := math.Max(rec.PutIV, MinIV)
		rows[i] = GreeksRow{
			StrikeRecord: rec,
			CallGamma:    Gamma(S, rec.Strike, T, r, callIV),
			PutGamma:     Gamma(S, rec.Strike, T, r, putIV),
			CallDelta:    Delta(S, rec.Strike, T, r, callIV, Call),
			PutDelta:     Delta(S, rec.Strike, T, r, putIV, Put),
		}
	}
	return rows
}
