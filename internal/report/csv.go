// Package report renders analysis reports as CSV and as plain-text tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
)

// Row is one CSV line: a strike's quotes, Greeks and exposure.
type Row struct {
	Strike          float64 `csv:"Strike"`
	CallOI          int64   `csv:"Call_OI"`
	PutOI           int64   `csv:"Put_OI"`
	CallIV          float64 `csv:"Call_IV"`
	PutIV           float64 `csv:"Put_IV"`
	CallLTP         float64 `csv:"Call_LTP"`
	PutLTP          float64 `csv:"Put_LTP"`
	CallVolume      int64   `csv:"Call_Volume"`
	PutVolume       int64   `csv:"Put_Volume"`
	CallGamma       float64 `csv:"Call_Gamma"`
	PutGamma        float64 `csv:"Put_Gamma"`
	CallDelta       float64 `csv:"Call_Delta"`
	PutDelta        float64 `csv:"Put_Delta"`
	CallGEX         float64 `csv:"Call_GEX"`
	PutGEX          float64 `csv:"Put_GEX"`
	NetGEX          float64 `csv:"Net_GEX"`
	NetGEXB         float64 `csv:"Net_GEX_B"`
	CallDEX         float64 `csv:"Call_DEX"`
	PutDEX          float64 `csv:"Put_DEX"`
	NetDEX          float64 `csv:"Net_DEX"`
	NetDEXB         float64 `csv:"Net_DEX_B"`
	HedgingPressure float64 `csv:"Hedging_Pressure"`
	TotalVolume     int64   `csv:"Total_Volume"`
}

// Rows flattens the exposure table of rep.
func Rows(rep *analyzer.Report) []*Row {
	rows := make([]*Row, len(rep.Result.Rows))
	for i, r := range rep.Result.Rows {
		rows[i] = &Row{
			Strike:          r.Strike,
			CallOI:          r.CallOI,
			PutOI:           r.PutOI,
			CallIV:          r.CallIV,
			PutIV:           r.PutIV,
			CallLTP:         r.CallLTP,
			PutLTP:          r.PutLTP,
			CallVolume:      r.CallVolume,
			PutVolume:       r.PutVolume,
			CallGamma:       r.CallGamma,
			PutGamma:        r.PutGamma,
			CallDelta:       r.CallDelta,
			PutDelta:        r.PutDelta,
			CallGEX:         r.CallGEX,
			PutGEX:          r.PutGEX,
			NetGEX:          r.NetGEX,
			NetGEXB:         r.NetGEXB,
			CallDEX:         r.CallDEX,
			PutDEX:          r.PutDEX,
			NetDEX:          r.NetDEX,
			NetDEXB:         r.NetDEXB,
			HedgingPressure: r.HedgingPressure,
			TotalVolume:     r.TotalVolume,
		}
	}
	return rows
}

// WriteCSV writes the exposure table of rep with a header line.
func WriteCSV(w io.Writer, rep *analyzer.Report) error {
	rows := Rows(rep)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) ([]*Row, error) {
	var rows []*Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return rows, nil
}

// CSVFileName names an export after the symbol and the market-local time.
func CSVFileName(symbol string, t time.Time) string {
	return fmt.Sprintf("GEXDEX_%s_%s.csv", strings.ToUpper(symbol), t.In(Market).Format("20060102_1504"))
}
