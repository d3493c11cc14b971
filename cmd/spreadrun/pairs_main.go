package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spreadrun/spreadrun/internal/data"
	"github.com/spreadrun/spreadrun/internal/stats"
	"github.com/spreadrun/spreadrun/internal/universe"
)

func newPairsCmd() *cobra.Command {
	pairsCmd := &cobra.Command{
		Use:   "pairs",
		Short: "Pair discovery commands",
	}

	findCmd := &cobra.Command{
		Use:   "find",
		Short: "Scan every ticker pair for cointegration over a date range",
		Long:  "Runs the Engle-Granger test on all unordered ticker pairs and writes pairs.csv sorted by p-value, used as the backtest whitelist",
		RunE:  runPairsFind,
	}
	findCmd.Flags().String("start", "", "Scan start date (YYYY-MM-DD)")
	findCmd.Flags().String("end", "", "Scan end date (YYYY-MM-DD)")
	findCmd.Flags().Int("min-overlap", 60, "Minimum aligned observations per pair")

	pairsCmd.AddCommand(findCmd)
	return pairsCmd
}

func runPairsFind(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
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
	minOverlap, _ := cmd.Flags().GetInt("min-overlap")

	tickers, err := universe.DiscoverTickers(cfg.Data.RawDir, data.FileSuffix)
	if err != nil {
		return err
	}
	if len(tickers) < 2 {
		return fmt.Errorf("need at least two tickers under %s, found %d", cfg.Data.RawDir, len(tickers))
	}

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	prices := make(map[string]data.PriceSeries)
	for _, t := range tickers {
		series, err := store.LoadLogPrices(cmd.Context(), t, start, end)
		if err != nil {
			log.Warn().Str("ticker", t).Err(err).Msg("skipping ticker")
			continue
		}
		prices[t] = series
	}

	type pairPval struct {
		t1, t2 string
		pval   float64
	}
	var found []pairPval
	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			s1, ok1 := prices[tickers[i]]
			s2, ok2 := prices[tickers[j]]
			if !ok1 || !ok2 {
				continue
			}
			aligned := data.Align(s1, s2)
			if aligned.Len() < minOverlap {
				continue
			}
			pval, err := stats.EngleGranger(aligned.LP1, aligned.LP2)
			if err != nil {
				log.Debug().Str("pair", tickers[i]+"/"+tickers[j]).Err(err).Msg("cointegration test failed")
				continue
			}
			found = append(found, pairPval{tickers[i], tickers[j], pval})
		}
	}
	sort.Slice(found, func(a, b int) bool { return found[a].pval < found[b].pval })

	if err := os.MkdirAll(cfg.Data.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	outPath := filepath.Join(cfg.Data.ResultsDir, "pairs.csv")
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	rows := [][]string{{"ticker1", "ticker2", "pval"}}
	for _, p := range found {
		rows = append(rows, []string{p.t1, p.t2, strconv.FormatFloat(p.pval, 'g', -1, 64)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	cw.Flush()

	log.Info().Int("pairs", len(found)).Str("path", outPath).Msg("pair scan written")
	return cw.Error()
}
