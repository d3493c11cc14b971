package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spreadrun/spreadrun/internal/backtest"
	"github.com/spreadrun/spreadrun/internal/config"
	"github.com/spreadrun/spreadrun/internal/data"
	"github.com/spreadrun/spreadrun/internal/metrics"
	"github.com/spreadrun/spreadrun/internal/monitor"
	"github.com/spreadrun/spreadrun/internal/universe"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the walk-forward pairs backtest",
		Long:  "Slides formation/trading windows across the date range, screening pairs each cycle and aggregating cost-adjusted PnL",
		RunE:  runBacktest,
	}

	cmd.Flags().String("start", "", "Backtest start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Backtest end date (YYYY-MM-DD)")
	cmd.Flags().Int("formation", 0, "Formation window length in trading days")
	cmd.Flags().Int("trade", 0, "Trading window length in trading days")
	cmd.Flags().Int("lookback", 0, "Rolling z-score lookback")
	cmd.Flags().Float64("entry", 0, "Entry z-score threshold")
	cmd.Flags().Float64("exit", 0, "Exit z-score threshold")
	cmd.Flags().Int("time-stop", 0, "Time stop in calendar days")
	cmd.Flags().Float64("cost-bps", -1, "Per-leg transaction cost in basis points")
	cmd.Flags().Bool("within-sector", false, "Restrict pairs to matching sector codes")
	cmd.Flags().String("labels-date", "", "Sector labels snapshot date")
	cmd.Flags().Int("workers", 0, "Screener worker count (0 = NumCPU)")
	cmd.Flags().String("out", "", "Artifact output directory (default: results dir)")
	cmd.Flags().String("monitor-addr", "", "Serve metrics/progress on this address while running")
	return cmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	start, _ := time.Parse("2006-01-02", cfg.Backtest.Start)
	end, _ := time.Parse("2006-01-02", cfg.Backtest.End)
	btCfg := &backtest.Config{
		Start:        start,
		End:          end,
		Formation:    cfg.Backtest.Formation,
		Trade:        cfg.Backtest.Trade,
		Lookback:     cfg.Backtest.Lookback,
		EntryZ:       cfg.Backtest.EntryZ,
		ExitZ:        cfg.Backtest.ExitZ,
		TimeStopDays: cfg.Backtest.TimeStopDays,
		CostBPS:      cfg.Backtest.CostBPS,
		WithinSector: cfg.Backtest.WithinSector,
		Workers:      cfg.Backtest.Workers,
		OutputDir:    cfg.Data.ResultsDir,
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		btCfg.OutputDir = out
	}

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	tickers, err := universe.DiscoverTickers(cfg.Data.RawDir, data.FileSuffix)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return fmt.Errorf("no price files found under %s; run `spreadrun fetch daily` first", cfg.Data.RawDir)
	}
	log.Info().Int("tickers", len(tickers)).Str("raw_dir", cfg.Data.RawDir).Msg("universe discovered")

	reg := metrics.New()
	runner := backtest.NewRunner(btCfg, cfg.Gates, store)
	runner.SetMetrics(reg)
	runner.SetWhitelist(universe.LoadWhitelist(
		filepath.Join(cfg.Data.ResultsDir, "pairs.csv"), cfg.Gates.PValMax))

	if btCfg.WithinSector {
		labelsDate := cfg.Backtest.LabelsDate
		if labelsDate == "" {
			labelsDate = cfg.Backtest.End
		}
		sectors, err := universe.LoadSectorMap(universe.SectorMapFile(cfg.Data.MetaDir, labelsDate))
		if err != nil {
			return err
		}
		runner.SetSectors(sectors)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr, _ := cmd.Flags().GetString("monitor-addr"); addr != "" {
		srv := monitor.NewServer(addr, reg)
		runner.SetProgress(func(ev backtest.CycleEvent) { srv.Hub().Broadcast(ev) })
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("monitor server failed")
			}
		}()
		defer func() {
			shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer sdCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	results, err := runner.Run(ctx, tickers)
	if err != nil {
		return err
	}

	writer := backtest.NewWriter(btCfg.OutputDir)
	if err := writer.WriteAll(results); err != nil {
		return err
	}
	paths := writer.GetArtifactPaths()
	log.Info().
		Str("equity", paths.EquityCSV).
		Str("summary", paths.SummaryCSV).
		Str("pairs", paths.PairStatsCSV).
		Msg("artifacts written")

	banner := color.New(color.FgGreen, color.Bold)
	banner.Printf("Sharpe=%.2f AnnRet=%.4f AnnVol=%.4f Days=%d Cycles=%d\n",
		results.Sharpe, results.AnnReturn, results.AnnVol, results.NumDays, results.NumCycles)
	return nil
}

// loadRunConfig merges the YAML file with any explicitly set flags.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flagOverrides := map[string]func(f *pflag.Flag){
		"start":         func(f *pflag.Flag) { cfg.Backtest.Start = f.Value.String() },
		"end":           func(f *pflag.Flag) { cfg.Backtest.End = f.Value.String() },
		"formation":     func(f *pflag.Flag) { cfg.Backtest.Formation, _ = cmd.Flags().GetInt("formation") },
		"trade":         func(f *pflag.Flag) { cfg.Backtest.Trade, _ = cmd.Flags().GetInt("trade") },
		"lookback":      func(f *pflag.Flag) { cfg.Backtest.Lookback, _ = cmd.Flags().GetInt("lookback") },
		"entry":         func(f *pflag.Flag) { cfg.Backtest.EntryZ, _ = cmd.Flags().GetFloat64("entry") },
		"exit":          func(f *pflag.Flag) { cfg.Backtest.ExitZ, _ = cmd.Flags().GetFloat64("exit") },
		"time-stop":     func(f *pflag.Flag) { cfg.Backtest.TimeStopDays, _ = cmd.Flags().GetInt("time-stop") },
		"cost-bps":      func(f *pflag.Flag) { cfg.Backtest.CostBPS, _ = cmd.Flags().GetFloat64("cost-bps") },
		"within-sector": func(f *pflag.Flag) { cfg.Backtest.WithinSector, _ = cmd.Flags().GetBool("within-sector") },
		"labels-date":   func(f *pflag.Flag) { cfg.Backtest.LabelsDate = f.Value.String() },
		"workers":       func(f *pflag.Flag) { cfg.Backtest.Workers, _ = cmd.Flags().GetInt("workers") },
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if apply, ok := flagOverrides[f.Name]; ok {
			apply(f)
			log.Debug().Str("flag", f.Name).Str("value", f.Value.String()).Msg("flag override")
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStore assembles the price store: CSV by default, Postgres when a
// DSN is configured, wrapped in a Redis cache when an address is set.
func buildStore(cfg *config.Config) (data.Store, func(), error) {
	var store data.Store
	cleanup := func() {}

	if dsn := cfg.Data.Postgres.DSN; dsn != "" {
		pg, err := data.NewPostgresStore(dsn, cfg.Data.PostgresTimeout())
		if err != nil {
			return nil, nil, err
		}
		store = pg
		cleanup = func() { pg.Close() }
		log.Info().Msg("using postgres price store")
	} else {
		store = data.NewCSVStore(cfg.Data.RawDir)
	}

	if addr := cfg.Data.Redis.Addr; addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Data.Redis.DB})
		store = data.NewCachedStore(store, rdb, cfg.Data.RedisTTL())
		prev := cleanup
		cleanup = func() { rdb.Close(); prev() }
		log.Info().Str("addr", addr).Msg("price cache enabled")
	}
	return store, cleanup, nil
}
