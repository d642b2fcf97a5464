package provider

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

const (
	syntheticExpiries = 4
	syntheticBaseOI   = 2_000_000
	syntheticATMIV    = 13.0 // percent
	syntheticSkew     = 0.9
)

// Synthetic generates plausible flat CE/PE chains around each symbol's
// reference price. Output depends only on seed, symbol, expiry and day.
type Synthetic struct {
	symbols config.Symbols
	seed    int64
	strikes int
	now     func() time.Time
}

var _ Provider = (*Synthetic)(nil)

func NewSynthetic(symbols config.Symbols, seed int64, strikes int) *Synthetic {
	if strikes < 2 {
		strikes = 60
	}
	return &Synthetic{symbols: symbols, seed: seed, strikes: strikes, now: time.Now}
}

func (s *Synthetic) Name() string { return "synthetic" }

// Expiries lists the next weekly Thursday expiries.
func (s *Synthetic) Expiries(_ context.Context, symbol string) ([]string, error) {
	if _, err := s.symbols.Lookup(symbol); err != nil {
		return nil, err
	}
	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for day.Weekday() != time.Thursday {
		day = day.AddDate(0, 0, 1)
	}
	out := make([]string, syntheticExpiries)
	for i := range out {
		out[i] = day.AddDate(0, 0, 7*i).Format("2006-01-02")
	}
	return out, nil
}

func (s *Synthetic) Chain(ctx context.Context, req Request) (*gex.RawChain, error) {
	sym, err := s.symbols.Lookup(req.Symbol)
	if err != nil {
		return nil, err
	}
	expiries, err := s.Expiries(ctx, sym.Name)
	if err != nil {
		return nil, err
	}
	expiry := expiryAt(expiries, req.ExpiryIndex)
	now := s.now()

	rng := rand.New(rand.NewPCG(uint64(s.seed), streamID(sym.Name, expiry, now.Format("2006-01-02"))))

	spot := sym.ReferencePrice * (1 + 0.004*rng.NormFloat64())
	step := sym.StrikeStep
	atm := math.Round(spot/step) * step
	first := atm - float64(s.strikes/2)*step

	// open interest peaks near the money and decays over ~8 strikes
	bell := distuv.Normal{Mu: 0, Sigma: 8}
	peak := bell.Prob(0)

	records := make([]gex.RawRecord, 0, 2*s.strikes)
	for i := 0; i < s.strikes; i++ {
		k := first + float64(i)*step
		if k <= 0 {
			continue
		}
		m := (k - spot) / step
		weight := bell.Prob(m) / peak
		moneyness := (k - spot) / spot * 100

		callOI := syntheticBaseOI * weight * (0.7 + 0.6*rng.Float64())
		putOI := syntheticBaseOI * weight * (0.7 + 0.6*rng.Float64())
		// puts carry more open interest below spot, calls above
		if k < spot {
			putOI *= 1.4
		} else {
			callOI *= 1.4
		}

		callIV := syntheticATMIV + 0.08*moneyness*moneyness - syntheticSkew*moneyness*0.5
		putIV := syntheticATMIV + 0.08*moneyness*moneyness - syntheticSkew*moneyness
		timeValue := spot * 0.004 * weight

		records = append(records,
			flatRecord(k, "CE", callOI, math.Max(callIV, 2), math.Max(spot-k, 0)+timeValue, callOI*0.3*rng.Float64()),
			flatRecord(k, "PE", putOI, math.Max(putIV, 2), math.Max(k-spot, 0)+timeValue, putOI*0.3*rng.Float64()),
		)
	}

	return &gex.RawChain{
		Symbol:          sym.Name,
		UnderlyingPrice: round2(spot),
		Expiry:          expiry,
		Expiries:        expiries,
		Records:         records,
		Source:          s.Name(),
		FetchedAt:       now,
	}, nil
}

func flatRecord(strike float64, typ string, oi, iv, ltp, volume float64) gex.RawRecord {
	return gex.RawRecord{
		"strike_price": strike,
		"option_type":  typ,
		"oi":           math.Round(oi),
		"iv":           round2(iv),
		"ltp":          round2(ltp),
		"volume":       math.Round(volume),
	}
}

func streamID(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
