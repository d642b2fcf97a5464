package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/app"
	"github.com/dgnsrekt/gexdex/internal/report"
)

func analyzeCmd() *cobra.Command {
	var (
		q       analyzer.Query
		csvPath string
		asJSON  bool
		noTable bool
	)

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Compute GEX/DEX, near-ATM flow and flip zones for one symbol",
		Long: `Fetch the option chain of SYMBOL and print dealer exposure.

Examples:
  # Nearest expiry, default strike window
  gexdex analyze NIFTY

  # Second expiry, 8 strikes each side, export CSV into ./exports
  gexdex analyze BANKNIFTY --expiry-index 1 --strikes-range 8 --csv exports/

  # Offline, deterministic chain
  gexdex --mode synthetic analyze FINNIFTY --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Symbol = args[0]
			return withApp(cmd.Context(), func(a *app.App) error {
				rep, err := a.Service.Analyze(cmd.Context(), q)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(rep); err != nil {
						return err
					}
				} else {
					if err := report.WriteSummary(out, rep); err != nil {
						return err
					}
					if !noTable {
						fmt.Fprintln(out)
						if err := report.WriteTable(out, rep); err != nil {
							return err
						}
					}
				}

				if csvPath != "" {
					path, err := writeCSVFile(csvPath, rep)
					if err != nil {
						return err
					}
					logger.Info("csv written", zap.String("path", path), zap.Int("rows", len(rep.Result.Rows)))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&q.ExpiryIndex, "expiry-index", "e", 0, "index into the ascending expiry list")
	cmd.Flags().IntVarP(&q.StrikesRange, "strikes-range", "r", 0, "strike steps each side of spot (default from config)")
	cmd.Flags().BoolVar(&q.Fresh, "fresh", false, "bypass the report cache")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the exposure table as CSV to FILE, or into DIR/ with a generated name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&noTable, "no-table", false, "print only the summary")

	return cmd
}

func writeCSVFile(path string, rep *analyzer.Report) (string, error) {
	if info, err := os.Stat(path); (err == nil && info.IsDir()) || os.IsPathSeparator(path[len(path)-1]) {
		path = filepath.Join(path, report.CSVFileName(rep.Symbol, rep.GeneratedAt))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating csv directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating csv: %w", err)
	}
	if err := report.WriteCSV(f, rep); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
