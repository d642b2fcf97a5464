package gex

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultIV replaces a missing, zero or negative implied volatility.
const DefaultIV = 0.15

// Side is the option leg type.
type Side int

const (
	Call Side = iota
	Put
)

func (s Side) String() string {
	if s == Put {
		return "put"
	}
	return "call"
}

// Leg is one side of one strike as extracted by a RecordParser.
// IV is raw: percentage or fraction, zero when absent.
type Leg struct {
	Strike float64
	Side   Side
	OI     int64
	IV     float64
	LTP    float64
	Volume int64
}

// RecordParser recognises one broker record shape.
// Parse returns false when the shape does not apply or the record is malformed.
type RecordParser interface {
	Name() string
	Parse(rec RawRecord) ([]Leg, bool)
}

var (
	strikeKeys = []string{"strike_price", "strikePrice", "strike"}
	typeKeys   = []string{"option_type", "optionType", "type"}
	oiKeys     = []string{"oi", "open_interest", "openInterest"}
	ivKeys     = []string{"iv", "implied_volatility", "impliedVolatility"}
	ltpKeys    = []string{"ltp", "last_price", "lastPrice"}
	volumeKeys = []string{"volume", "totalTradedVolume"}
)

// FlatParser handles one-contract-per-record feeds tagged CALL/CE or PUT/PE.
type FlatParser struct{}

func (FlatParser) Name() string { return "flat" }

func (FlatParser) Parse(rec RawRecord) ([]Leg, bool) {
	typ, ok := lookup(rec, typeKeys...)
	if !ok {
		return nil, false
	}
	side, ok := parseSide(typ)
	if !ok {
		return nil, false
	}
	strike, ok := parseStrike(rec)
	if !ok {
		return nil, false
	}
	leg, err := parseQuote(rec)
	if err != nil {
		return nil, false
	}
	leg.Strike = strike
	leg.Side = side
	return []Leg{leg}, true
}

// NestedParser handles one-strike-per-record feeds carrying both legs as
// sub-objects: ce/pe (Dhan) or call_options/put_options (Upstox).
type NestedParser struct{}

func (NestedParser) Name() string { return "nested" }

func (NestedParser) Parse(rec RawRecord) ([]Leg, bool) {
	call, hasCall := nestedLeg(rec, "ce", "CE", "call_options", "callOptions")
	put, hasPut := nestedLeg(rec, "pe", "PE", "put_options", "putOptions")
	if !hasCall && !hasPut {
		return nil, false
	}
	strike, ok := parseStrike(rec)
	if !ok {
		return nil, false
	}

	var legs []Leg
	if hasCall {
		leg, err := parseQuote(call)
		if err != nil {
			return nil, false
		}
		leg.Strike, leg.Side = strike, Call
		legs = append(legs, leg)
	}
	if hasPut {
		leg, err := parseQuote(put)
		if err != nil {
			return nil, false
		}
		leg.Strike, leg.Side = strike, Put
		legs = append(legs, leg)
	}
	return legs, true
}

// nestedLeg flattens a leg object. Upstox splits quotes into market_data and
// option_greeks; both are merged over the top-level fields.
func nestedLeg(rec RawRecord, keys ...string) (map[string]any, bool) {
	v, ok := lookup(rec, keys...)
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	flat := make(map[string]any, len(m))
	for k, v := range m {
		flat[k] = v
	}
	if md, ok := asMap(m["market_data"]); ok {
		for k, v := range md {
			flat[k] = v
		}
	}
	if g, ok := asMap(m["option_greeks"]); ok {
		if iv, ok := lookup(g, ivKeys...); ok {
			flat["iv"] = iv
		}
	}
	return flat, true
}

// DefaultParsers returns the strategies tried, in order, by a zero Normalizer.
func DefaultParsers() []RecordParser {
	return []RecordParser{FlatParser{}, NestedParser{}}
}

// Normalizer maps heterogeneous raw records to canonical strike records.
type Normalizer struct {
	parsers []RecordParser
}

// NewNormalizer builds a Normalizer; with no parsers it uses DefaultParsers.
func NewNormalizer(parsers ...RecordParser) *Normalizer {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	return &Normalizer{parsers: parsers}
}

// Normalize merges call and put legs per strike. It returns the strike table
// and the number of records no parser could use.
func (n *Normalizer) Normalize(records []RawRecord) (map[float64]StrikeRecord, int) {
	byStrike := make(map[float64]*StrikeRecord)
	dropped := 0

	for _, rec := range records {
		legs, ok := n.parse(rec)
		if !ok {
			dropped++
			continue
		}
		for _, leg := range legs {
			row, exists := byStrike[leg.Strike]
			if !exists {
				row = &StrikeRecord{Strike: leg.Strike, CallIV: DefaultIV, PutIV: DefaultIV}
				byStrike[leg.Strike] = row
			}
			iv := NormalizeIV(leg.IV)
			if leg.Side == Call {
				row.CallOI, row.CallIV, row.CallLTP, row.CallVolume = leg.OI, iv, leg.LTP, leg.Volume
			} else {
				row.PutOI, row.PutIV, row.PutLTP, row.PutVolume = leg.OI, iv, leg.LTP, leg.Volume
			}
		}
	}

	out := make(map[float64]StrikeRecord, len(byStrike))
	for k, v := range byStrike {
		out[k] = *v
	}
	return out, dropped
}

func (n *Normalizer) parse(rec RawRecord) ([]Leg, bool) {
	if rec == nil {
		return nil, false
	}
	for _, p := range n.parsers {
		if legs, ok := p.Parse(rec); ok {
			return legs, true
		}
	}
	return nil, false
}

// Normalize runs the default strategies over records.
func Normalize(records []RawRecord) map[float64]StrikeRecord {
	out, _ := NewNormalizer().Normalize(records)
	return out
}

// NormalizeIV applies the IV rules: values <= 0 or not finite become
// DefaultIV, values above 1 are percentages.
func NormalizeIV(iv float64) float64 {
	switch {
	case math.IsNaN(iv) || math.IsInf(iv, 0) || iv <= 0:
		return DefaultIV
	case iv > 1:
		return iv / 100
	default:
		return iv
	}
}

func parseStrike(rec RawRecord) (float64, bool) {
	raw, ok := lookup(rec, strikeKeys...)
	if !ok {
		return 0, false
	}
	strike, err := toFloat(raw)
	if err != nil || strike <= 0 || math.IsInf(strike, 0) {
		return 0, false
	}
	return strike, true
}

func parseQuote(m map[string]any) (Leg, error) {
	var leg Leg
	oi, err := count(m, oiKeys)
	if err != nil {
		return leg, err
	}
	vol, err := count(m, volumeKeys)
	if err != nil {
		return leg, err
	}
	ltp, err := nonNegative(m, ltpKeys)
	if err != nil {
		return leg, err
	}
	var iv float64
	if raw, ok := lookup(m, ivKeys...); ok {
		if iv, err = toFloat(raw); err != nil {
			return leg, fmt.Errorf("iv: %w", err)
		}
	}
	leg.OI = int64(oi)
	leg.Volume = int64(vol)
	leg.LTP = ltp
	leg.IV = iv
	return leg, nil
}

// maxCount is the largest OI or volume accepted; every integer up to it is
// exact in a float64.
const maxCount = 1 << 53

// count reads a contract count. Values that do not fit an int64 exactly
// are out of range.
func count(m map[string]any, keys []string) (float64, error) {
	v, err := nonNegative(m, keys)
	if err != nil {
		return 0, err
	}
	if v > maxCount {
		return 0, fmt.Errorf("%s: out of range %v", keys[0], v)
	}
	return v, nil
}

func nonNegative(m map[string]any, keys []string) (float64, error) {
	raw, ok := lookup(m, keys...)
	if !ok {
		return 0, nil
	}
	v, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", keys[0], err)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: out of range %v", keys[0], v)
	}
	return v, nil
}

func parseSide(v any) (Side, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case s == "CE" || strings.Contains(s, "CALL"):
		return Call, true
	case s == "PE" || strings.Contains(s, "PUT"):
		return Put, true
	}
	return 0, false
}

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case RawRecord:
		return m, true
	}
	return nil, false
}

// toFloat accepts JSON numbers, Go numerics and numeric strings such as
// "24,500.00".
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return decimalFloat(string(n))
	case string:
		return decimalFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
	}
	return 0, fmt.Errorf("unsupported numeric type %T", v)
}

func decimalFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
