package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/app"
	"github.com/dgnsrekt/gexdex/internal/config"
)

var (
	cfgFile string
	envFile string
	mode    string
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gexdex",
		Short:        "Dealer gamma and delta exposure for NSE index options",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				var err error
				logger, err = app.SetupLogger("gexdex", verbose, nil)
				return err
			}

			if mode != "" {
				if err := os.Setenv("GEXDEX_PROVIDER_MODE", mode); err != nil {
					return err
				}
			}

			var err error
			cfg, err = config.Load(cfgFile, envFile)
			if err != nil {
				return err
			}

			logger, err = app.SetupLogger("gexdex", verbose, &cfg.Logging)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("GEXDEX_CONFIG"), "config file path (or set GEXDEX_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with broker credentials (default ./.env)")
	rootCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "", "override provider.mode (live, synthetic, replay)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(expiriesCmd())
	rootCmd.AddCommand(symbolsCmd())
	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withApp builds the application for one command run.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing application", zap.Error(err))
		}
	}()
	return fn(a)
}
