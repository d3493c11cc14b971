package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "SpreadRun"
	version = "v1.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     "spreadrun",
		Short:   "Walk-forward statistical-arbitrage pairs backtester",
		Version: version,
		Long: `SpreadRun identifies co-moving securities, estimates mean-reverting
spread relationships, and simulates a rolling pairs-trading strategy with
cointegration screening, z-score signals, and leg-counted transaction costs.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level")
			if lv, err := zerolog.ParseLevel(level); err == nil {
				zerolog.SetGlobalLevel(lv)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "config/backtest.yaml", "Path to YAML configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newPairsCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
