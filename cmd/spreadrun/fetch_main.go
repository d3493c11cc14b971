package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spreadrun/spreadrun/internal/data"
	"github.com/spreadrun/spreadrun/internal/data/fetch"
)

func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download raw price history",
	}

	dailyCmd := &cobra.Command{
		Use:   "daily",
		Short: "Download daily bars into the raw data directory",
		RunE:  runFetchDaily,
	}
	dailyCmd.Flags().StringSlice("tickers", nil, "Tickers to download (required)")
	dailyCmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	dailyCmd.Flags().String("end", "", "End date (YYYY-MM-DD)")
	dailyCmd.MarkFlagRequired("tickers")

	fetchCmd.AddCommand(dailyCmd)
	return fetchCmd
}

func runFetchDaily(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	tickers, _ := cmd.Flags().GetStringSlice("tickers")
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	if startStr == "" {
		startStr = cfg.Backtest.Start
	}
	if endStr == "" {
		endStr = cfg.Backtest.End
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return fmt.Errorf("start date %q: %w", startStr, err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return fmt.Errorf("end date %q: %w", endStr, err)
	}

	apiKey := os.Getenv(cfg.Fetch.APIKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("no API key: set %s before fetching", cfg.Fetch.APIKeyEnv)
	}

	fetcher := fetch.New(cfg.Fetch.BaseURL, apiKey, cfg.Fetch.RequestsPerSec, cfg.Fetch.Burst)
	var failed []string
	for _, ticker := range tickers {
		bars, err := fetcher.DailyBars(cmd.Context(), ticker, start, end)
		if err != nil {
			log.Error().Str("ticker", ticker).Err(err).Msg("fetch failed")
			failed = append(failed, ticker)
			continue
		}
		path, err := fetch.WriteCSV(cfg.Data.RawDir, ticker, data.FileSuffix, bars)
		if err != nil {
			return err
		}
		log.Info().Str("ticker", ticker).Int("bars", len(bars)).Str("path", path).Msg("daily bars saved")
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to fetch %d/%d tickers: %s",
			len(failed), len(tickers), strings.Join(failed, ","))
	}
	return nil
}
