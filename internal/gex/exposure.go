package gex

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultStrikesRange is the number of strike steps kept on each side of spot.
	DefaultStrikesRange = 12
	// DefaultStrikeStep is the strike increment assumed when none is known.
	DefaultStrikeStep = 100.0

	billion = 1e9
	// exposure is quoted per 1% move of the underlying
	onePercent = 0.01
)

// FilterRange keeps the strikes inside [S-rng*step, S+rng*step], bounds
// included. Strikes outside the window are removed, never zeroed.
func FilterRange(strikes []StrikeRecord, S float64, rng int, step float64) []StrikeRecord {
	lo := S - float64(rng)*step
	hi := S + float64(rng)*step
	out := make([]StrikeRecord, 0, len(strikes))
	for _, rec := range strikes {
		if rec.Strike >= lo && rec.Strike <= hi {
			out = append(out, rec)
		}
	}
	return out
}

// Aggregate turns Greeks rows into per-strike exposure at underlying S and
// locates the ATM strike. rows must be sorted ascending by strike.
func Aggregate(rows []GreeksRow, S float64) ([]ExposureRow, AtmInfo, error) {
	if len(rows) == 0 {
		return nil, AtmInfo{}, invalid("no strikes in range")
	}

	out := make([]ExposureRow, len(rows))
	absNet := make([]float64, len(rows))
	for i, g := range rows {
		e := ExposureRow{GreeksRow: g}
		e.CallGEX = g.CallGamma * float64(g.CallOI) * S * S * onePercent
		// dealers short puts hedge against the short-call flow
		e.PutGEX = -(g.PutGamma * float64(g.PutOI) * S * S * onePercent)
		e.NetGEX = e.CallGEX + e.PutGEX
		e.NetGEXB = e.NetGEX / billion

		e.CallDEX = g.CallDelta * float64(g.CallOI) * S * onePercent
		e.PutDEX = g.PutDelta * float64(g.PutOI) * S * onePercent
		e.NetDEX = e.CallDEX + e.PutDEX
		e.NetDEXB = e.NetDEX / billion

		e.TotalVolume = g.CallVolume + g.PutVolume
		absNet[i] = math.Abs(e.NetGEX)
		out[i] = e
	}

	if total := floats.Sum(absNet); total > 0 {
		for i := range out {
			out[i].HedgingPressure = out[i].NetGEX / total * 100
		}
	}

	return out, atm(out, S), nil
}

// atm picks the strike closest to S; the first (lowest) strike wins ties.
func atm(rows []ExposureRow, S float64) AtmInfo {
	best := 0
	bestDist := math.Abs(rows[0].Strike - S)
	for i := 1; i < len(rows); i++ {
		if d := math.Abs(rows[i].Strike - S); d < bestDist {
			best, bestDist = i, d
		}
	}
	r := rows[best]
	return AtmInfo{Strike: r.Strike, StraddlePremium: r.CallLTP + r.PutLTP}
}

// Summarize sums the chain-wide exposure in billions.
func Summarize(rows []ExposureRow) Totals {
	var t Totals
	for _, r := range rows {
		t.CallGEXB += r.CallGEX / billion
		t.PutGEXB += r.PutGEX / billion
		t.NetGEXB += r.NetGEXB
		t.NetDEXB += r.NetDEXB
	}
	t.Bias = "VOLATILE"
	if t.NetGEXB > 0 {
		t.Bias = "BULLISH"
	}
	return t
}
