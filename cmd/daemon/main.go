package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/app"
	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/data"
	"github.com/dgnsrekt/gexdex/internal/notify"
	"github.com/dgnsrekt/gexdex/internal/record"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	daemonCfg := LoadDaemonConfig()

	logger.Info("daemon configuration loaded",
		zap.String("configPath", daemonCfg.ConfigPath),
		zap.String("timezone", daemonCfg.Timezone),
		zap.String("stateFile", daemonCfg.StateFile),
		zap.Strings("symbols", daemonCfg.Symbols),
	)

	cfg, err := config.Load(daemonCfg.ConfigPath, daemonCfg.EnvFile)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	symbols := daemonCfg.Symbols
	if len(symbols) == 0 {
		symbols = cfg.SymbolTable().Names()
	}
	if err := config.ValidateSymbols(symbols, cfg.SymbolTable()); err != nil {
		logger.Error("invalid symbols", zap.Error(err))
		return 1
	}

	loc, err := time.LoadLocation(daemonCfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", zap.String("timezone", daemonCfg.Timezone), zap.Error(err))
		return 1
	}

	logger.Info("recorder configuration loaded",
		zap.String("providerMode", cfg.Provider.Mode),
		zap.String("outputDir", cfg.Record.Directory),
		zap.Int("workers", cfg.Record.Workers),
		zap.Duration("interval", cfg.Record.Interval()),
		zap.Ints("expiryIndexes", cfg.Record.ExpiryIndexes),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", zap.Error(err))
		return 1
	}
	defer a.Close()

	rec, err := data.NewRecorder(cfg.Record.Directory, cfg.Record.Compress, logger)
	if err != nil {
		logger.Error("failed to open recorder", zap.Error(err))
		return 1
	}
	defer rec.Close()

	notifier := notify.New(cfg.Notify, logger)
	tracker := NewSessionTracker(daemonCfg.StateFile)

	mgr := record.NewManager(a.Provider, rec, cfg.Record.Workers, logger)
	loop := record.NewLoop(mgr, record.NSESession(loc, cfg.Record.Holidays), cfg.Record.Interval(), logger)
	loop.OnSessionEnd = func(ctx context.Context, day string, total *record.BatchResult, elapsed time.Duration) {
		reportSession(ctx, notifier, tracker, day, total, elapsed, logger)
	}

	tasks := record.Tasks(symbols, cfg.Record.ExpiryIndexes...)
	logger.Info("daemon started", zap.Int("tasks", len(tasks)))

	if err := loop.Run(ctx, tasks); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("recording loop stopped", zap.Error(err))
		return 1
	}
	logger.Info("received shutdown signal, daemon stopped")
	return 0
}

// reportSession sends the end-of-session summary once per trading day.
func reportSession(ctx context.Context, notifier notify.Notifier, tracker *SessionTracker, day string, total *record.BatchResult, elapsed time.Duration, logger *zap.Logger) {
	logger.Info("session complete",
		zap.String("day", day),
		zap.Int("total", total.Total),
		zap.Int("success", total.Success),
		zap.Int("not_found", total.NotFound),
		zap.Int("failed", total.Failed),
		zap.Int64("bytes", total.Bytes),
		zap.Duration("elapsed", elapsed),
	)

	if tracker.AlreadyReported(day) {
		logger.Debug("session already reported", zap.String("day", day))
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	var err error
	if total.Failed > 0 && total.Success == 0 {
		err = notifier.SendFailure(sendCtx, total, day, elapsed, fmt.Errorf("no chains recorded"))
	} else {
		err = notifier.SendSuccess(sendCtx, total, day, elapsed)
	}
	if err != nil {
		logger.Warn("notification failed", zap.Error(err))
		return
	}

	if err := tracker.SetLastReported(day); err != nil {
		logger.Error("failed to update tracker", zap.Error(err))
	}
}
