package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/app"
	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/data"
	"github.com/dgnsrekt/gexdex/internal/notify"
	"github.com/dgnsrekt/gexdex/internal/record"
	"github.com/dgnsrekt/gexdex/internal/report"
)

func recordCmd() *cobra.Command {
	var (
		dryRun        bool
		watch         bool
		expiryIndexes []int
	)

	cmd := &cobra.Command{
		Use:   "record [SYMBOL...]",
		Short: "Append option chain snapshots to the replay archive",
		Long: `Fetch the chains of the given symbols (all configured symbols when
none are given) and append them to {record.directory}/{date}/{SYMBOL}.jsonl.

Examples:
  # One snapshot of every symbol, nearest expiry
  gexdex record

  # First two expiries of NIFTY and BANKNIFTY
  gexdex record NIFTY BANKNIFTY --expiry-index 0,1

  # Keep recording every record.interval_sec while the NSE session is open
  gexdex record --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			symbols := args
			if len(symbols) == 0 {
				symbols = cfg.SymbolTable().Names()
			}
			if err := config.ValidateSymbols(symbols, cfg.SymbolTable()); err != nil {
				return err
			}
			if len(expiryIndexes) == 0 {
				expiryIndexes = cfg.Record.ExpiryIndexes
			}

			tasks := record.Tasks(symbols, expiryIndexes...)
			logger.Info("generated tasks", zap.Int("count", len(tasks)))

			if dryRun {
				for _, t := range tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "Would record: %s\n", t)
				}
				return nil
			}

			return withApp(ctx, func(a *app.App) error {
				rec, err := data.NewRecorder(cfg.Record.Directory, cfg.Record.Compress, logger)
				if err != nil {
					return err
				}
				defer rec.Close()

				mgr := record.NewManager(a.Provider, rec, cfg.Record.Workers, logger)
				notifier := notify.New(cfg.Notify, logger)

				if watch {
					loop := record.NewLoop(mgr, record.NSESession(report.Market, cfg.Record.Holidays), cfg.Record.Interval(), logger)
					loop.OnSessionEnd = func(ctx context.Context, day string, total *record.BatchResult, elapsed time.Duration) {
						logResult(total)
						sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
						defer cancel()
						if err := notifier.SendSuccess(sendCtx, total, day, elapsed); err != nil {
							logger.Warn("notification failed", zap.Error(err))
						}
					}
					err := loop.Run(ctx, tasks)
					if ctx.Err() != nil {
						return nil
					}
					return err
				}

				start := time.Now()
				result, err := mgr.Execute(ctx, tasks)
				logResult(result)
				label := time.Now().In(report.Market).Format("2006-01-02 15:04")
				if err != nil || result.Failed > 0 {
					if nerr := notifier.SendFailure(ctx, result, label, time.Since(start), err); nerr != nil {
						logger.Warn("notification failed", zap.Error(nerr))
					}
					if err != nil {
						return err
					}
					return fmt.Errorf("%d of %d chains failed", result.Failed, result.Total)
				}
				if nerr := notifier.SendSuccess(ctx, result, label, time.Since(start)); nerr != nil {
					logger.Warn("notification failed", zap.Error(nerr))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be recorded")
	cmd.Flags().BoolVar(&watch, "watch", false, "record repeatedly during the NSE session until interrupted")
	cmd.Flags().IntSliceVarP(&expiryIndexes, "expiry-index", "e", nil, "expiry indexes to record (default from config)")

	return cmd
}

func logResult(result *record.BatchResult) {
	logger.Info("recording complete",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("not_found", result.NotFound),
		zap.Int("failed", result.Failed),
		zap.Int64("bytes", result.Bytes),
		zap.Strings("files", result.Files),
	)
	for _, e := range result.Errors {
		logger.Error("record error", zap.String("error", e))
	}
}
