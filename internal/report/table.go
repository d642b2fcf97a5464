package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

type field struct {
	name  string
	value any
}

// WriteSummary prints the headline numbers of rep.
func WriteSummary(w io.Writer, rep *analyzer.Report) error {
	res := rep.Result
	fields := []field{
		{"Symbol", rep.Symbol},
		{"Source", rep.Source},
		{"Expiry", fmt.Sprintf("%s (%d days)", rep.Expiry, res.DaysToExpiry)},
		{"Underlying", fmt.Sprintf("%.2f", rep.UnderlyingPrice)},
		{"ATM strike", fmt.Sprintf("%.0f (straddle %.2f)", res.ATM.Strike, res.ATM.StraddlePremium)},
		{"Net GEX (B)", fmt.Sprintf("%.4f  call %.4f  put %.4f", res.Totals.NetGEXB, res.Totals.CallGEXB, res.Totals.PutGEXB)},
		{"Net DEX (B)", fmt.Sprintf("%.4f", res.Totals.NetDEXB)},
		{"Bias", res.Totals.Bias},
		{"Near-ATM flow", fmt.Sprintf("%s (gex %.4f, dex %.4f)", res.Flow.Combined, res.Flow.GEXNearTotal, res.Flow.DEXNearTotal)},
		{"Flip zones", FlipZones(res.FlipZones)},
		{"Generated", rep.GeneratedAt.In(Market).Format("2006-01-02 15:04:05 MST")},
	}
	if rep.Dropped > 0 {
		fields = append(fields, field{"Dropped records", rep.Dropped})
	}
	if rep.Cached {
		fields = append(fields, field{"Cached", "yes"})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "%s:\t%v\n", f.name, f.value)
	}
	return tw.Flush()
}

// FlipZones formats zones as "24400-24450, 24700-24750", or "none".
func FlipZones(zones []gex.FlipZone) string {
	if len(zones) == 0 {
		return "none"
	}
	parts := make([]string, len(zones))
	for i, z := range zones {
		parts[i] = fmt.Sprintf("%.0f-%.0f", z.LowerStrike, z.UpperStrike)
	}
	return strings.Join(parts, ", ")
}

// WriteTable prints the per-strike exposure table of rep, marking the ATM row.
func WriteTable(w io.Writer, rep *analyzer.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Strike\tCall OI\tPut OI\tCall IV\tPut IV\tNet GEX(B)\tNet DEX(B)\tHedge %\tVolume\t\t")
	for _, r := range rep.Result.Rows {
		marker := ""
		if r.Strike == rep.Result.ATM.Strike {
			marker = "ATM"
		}
		fmt.Fprintf(tw, "%.0f\t%d\t%d\t%.2f\t%.2f\t%.4f\t%.4f\t%.2f\t%d\t%s\t\n",
			r.Strike, r.CallOI, r.PutOI, r.CallIV*100, r.PutIV*100,
			r.NetGEXB, r.NetDEXB, r.HedgingPressure, r.TotalVolume, marker)
	}
	return tw.Flush()
}
