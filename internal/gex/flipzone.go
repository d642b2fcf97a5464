package gex

// DetectFlipZones returns every pair of adjacent strikes (ascending) whose
// net GEX changes sign. Zero counts as non-positive.
func DetectFlipZones(rows []ExposureRow) []FlipZone {
	sorted := sortedByStrike(rows)
	zones := []FlipZone{}
	for i := 0; i+1 < len(sorted); i++ {
		if (sorted[i].NetGEXB > 0) != (sorted[i+1].NetGEXB > 0) {
			zones = append(zones, FlipZone{
				LowerStrike: sorted[i].Strike,
				UpperStrike: sorted[i+1].Strike,
			})
		}
	}
	return zones
}
