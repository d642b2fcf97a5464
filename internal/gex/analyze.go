package gex

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultRiskFreeRate is used when the caller does not supply one.
const DefaultRiskFreeRate = 0.07

// Expiry layouts accepted in order; anything else falls back to now+7 days.
var expiryLayouts = []string{"2006-01-02", "02-Jan-2006"}

const fallbackExpiryDays = 7

// Params tune one analysis run. Zero values select the defaults.
type Params struct {
	StrikesRange int
	StrikeStep   float64
	// ReferencePrice centres the flow window; the underlying is used when 0.
	ReferencePrice float64
}

func (p Params) withDefaults(S float64) Params {
	if p.StrikesRange <= 0 {
		p.StrikesRange = DefaultStrikesRange
	}
	if p.StrikeStep <= 0 {
		p.StrikeStep = DefaultStrikeStep
	}
	if p.ReferencePrice <= 0 {
		p.ReferencePrice = S
	}
	return p
}

// ParseExpiry reads an expiry date in ISO or DD-Mon-YYYY form. It returns
// false and now+7 days when neither layout matches.
func ParseExpiry(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}
	return now.AddDate(0, 0, fallbackExpiryDays), false
}

// TimeToExpiry returns whole days left (at least 1) and the year fraction.
func TimeToExpiry(expiry, now time.Time) (int, float64) {
	days := int(math.Floor(expiry.Sub(now).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days, float64(days) / 365.0
}

// BuildSnapshot normalizes a raw chain into an ascending MarketSnapshot.
// It also returns how many raw records were dropped.
func BuildSnapshot(chain *RawChain, now time.Time, rate float64) (MarketSnapshot, int, error) {
	if chain == nil {
		return MarketSnapshot{}, 0, invalid("nil chain")
	}
	byStrike, dropped := NewNormalizer().Normalize(chain.Records)
	if len(byStrike) == 0 {
		return MarketSnapshot{}, dropped, invalid("no usable records after parsing (%d dropped)", dropped)
	}

	strikes := make([]StrikeRecord, 0, len(byStrike))
	for _, rec := range byStrike {
		strikes = append(strikes, rec)
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].Strike < strikes[j].Strike })

	expiry, _ := ParseExpiry(chain.Expiry, now)
	return MarketSnapshot{
		UnderlyingPrice: chain.UnderlyingPrice,
		ValuationTime:   now,
		ExpiryDate:      expiry,
		RiskFreeRate:    rate,
		Strikes:         strikes,
	}, dropped, nil
}

func (s MarketSnapshot) validate() error {
	if !(s.UnderlyingPrice > 0) || math.IsInf(s.UnderlyingPrice, 0) {
		return invalid("underlying price must be positive, got %v", s.UnderlyingPrice)
	}
	if math.IsNaN(s.RiskFreeRate) || math.IsInf(s.RiskFreeRate, 0) {
		return invalid("risk free rate must be finite")
	}
	if len(s.Strikes) == 0 {
		return invalid("snapshot has no strikes")
	}
	seen := make(map[float64]struct{}, len(s.Strikes))
	for _, rec := range s.Strikes {
		if !(rec.Strike > 0) {
			return invalid("strike must be positive, got %v", rec.Strike)
		}
		if _, dup := seen[rec.Strike]; dup {
			return invalid("duplicate strike %v", rec.Strike)
		}
		seen[rec.Strike] = struct{}{}
	}
	return nil
}

// Analyze runs the full pipeline over snap. On error no partial result is
// returned.
func Analyze(snap MarketSnapshot, p Params) (*Result, error) {
	if err := snap.validate(); err != nil {
		return nil, err
	}
	S := snap.UnderlyingPrice
	p = p.withDefaults(S)

	strikes := make([]StrikeRecord, len(snap.Strikes))
	copy(strikes, snap.Strikes)
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].Strike < strikes[j].Strike })
	strikes = FilterRange(strikes, S, p.StrikesRange, p.StrikeStep)

	days, T := TimeToExpiry(snap.ExpiryDate, snap.ValuationTime)
	greeks := ComputeGreeks(strikes, S, T, snap.RiskFreeRate)

	rows, atmInfo, err := Aggregate(greeks, S)
	if err != nil {
		return nil, err
	}

	return &Result{
		Rows:         rows,
		Flow:         AnalyzeFlow(rows, p.ReferencePrice),
		FlipZones:    DetectFlipZones(rows),
		ATM:          atmInfo,
		Totals:       Summarize(rows),
		DaysToExpiry: days,
		TimeToExpiry: T,
	}, nil
}
