package gex

import (
	"fmt"
	"math"
	"sort"
)

// Near-the-money policy constants.
const (
	FlowWindowHalf   = 5
	GEXBiasThreshold = 50.0
)

// AnalyzeFlow classifies the net exposure of the 11 strikes centred on the
// strike nearest refPrice (fewer at the table edges).
func AnalyzeFlow(rows []ExposureRow, refPrice float64) FlowSummary {
	sorted := sortedByStrike(rows)
	if len(sorted) == 0 {
		return classify(0, 0)
	}

	pos := 0
	bestDist := math.Abs(sorted[0].Strike - refPrice)
	for i := 1; i < len(sorted); i++ {
		if d := math.Abs(sorted[i].Strike - refPrice); d < bestDist {
			pos, bestDist = i, d
		}
	}
	start := max(0, pos-FlowWindowHalf)
	end := min(len(sorted), pos+FlowWindowHalf+1)

	var positive, negative, dex float64
	for _, r := range sorted[start:end] {
		switch {
		case r.NetGEXB > 0:
			positive += r.NetGEXB
		case r.NetGEXB < 0:
			negative += r.NetGEXB
		}
		dex += r.NetDEXB
	}
	return classify(positive+negative, dex)
}

func classify(gexTotal, dexTotal float64) FlowSummary {
	gb := GEXNeutral
	switch {
	case gexTotal > GEXBiasThreshold:
		gb = GEXStrongBullish
	case gexTotal < -GEXBiasThreshold:
		gb = GEXVolatile
	}
	db := DEXBearish
	if dexTotal > 0 {
		db = DEXBullish
	}
	return FlowSummary{
		GEXNearTotal: gexTotal,
		DEXNearTotal: dexTotal,
		GEXBias:      gb,
		DEXBias:      db,
		Combined:     fmt.Sprintf("%s + %s", gb, db),
	}
}

func sortedByStrike(rows []ExposureRow) []ExposureRow {
	out := make([]ExposureRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}
