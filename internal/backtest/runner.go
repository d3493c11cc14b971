// Package backtest is the walk-forward orchestrator: it slides
// formation/trading windows across the shared trading calendar, screens
// and trades pairs each cycle, and aggregates weighted net returns into
// the portfolio PnL series. Cycles run strictly in order; price history is
// the only state carried between them.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/config"
	"github.com/spreadrun/spreadrun/internal/data"
	"github.com/spreadrun/spreadrun/internal/metrics"
	"github.com/spreadrun/spreadrun/internal/screen"
	"github.com/spreadrun/spreadrun/internal/signal"
	"github.com/spreadrun/spreadrun/internal/universe"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// Clock is injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock with the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Runner executes a walk-forward backtest.
type Runner struct {
	config    *Config
	gates     config.GateConfig
	store     data.Store
	whitelist universe.PairSet
	sectors   map[string]int
	metrics   *metrics.Registry
	progress  func(CycleEvent)
	clock     Clock
}

// NewRunner creates a runner over the given price store.
func NewRunner(cfg *Config, gates config.GateConfig, store data.Store) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Runner{
		config: cfg,
		gates:  gates,
		store:  store,
		clock:  RealClock{},
	}
}

// SetWhitelist restricts candidate pairs to an external whitelist.
func (r *Runner) SetWhitelist(w universe.PairSet) { r.whitelist = w }

// SetSectors supplies the ticker -> SIC sector map for sector screening.
func (r *Runner) SetSectors(s map[string]int) { r.sectors = s }

// SetMetrics attaches a metrics registry.
func (r *Runner) SetMetrics(m *metrics.Registry) { r.metrics = m }

// SetProgress registers a per-cycle progress callback.
func (r *Runner) SetProgress(fn func(CycleEvent)) { r.progress = fn }

// SetClock sets the clock implementation (for testing).
func (r *Runner) SetClock(c Clock) { r.clock = c }

// Run executes the backtest over the given tickers. Per-pair gate
// failures never abort a cycle; only structural preconditions are fatal.
func (r *Runner) Run(ctx context.Context, tickers []string) (*Results, error) {
	started := r.clock.Now()
	r.metrics.SetActive(true)
	defer r.metrics.SetActive(false)

	prices, usable, err := r.loadUniverse(ctx, tickers)
	if err != nil {
		return nil, err
	}

	dates := data.UnionDates(prices)
	minDates := r.config.Formation + r.config.Trade + 5
	if len(dates) < minDates {
		return nil, fmt.Errorf("not enough overlapping trading dates for %s..%s: have %d, need %d (formation=%d trade=%d)",
			r.config.Start.Format("2006-01-02"), r.config.End.Format("2006-01-02"),
			len(dates), minDates, r.config.Formation, r.config.Trade)
	}

	screener := &screen.Screener{
		Gates:        r.gates,
		Lookback:     r.config.Lookback,
		Formation:    r.config.Formation,
		Whitelist:    r.whitelist,
		Sectors:      r.sectors,
		WithinSector: r.config.WithinSector,
		Workers:      r.config.Workers,
		Metrics:      r.metrics,
	}
	params := signal.Params{
		Lookback:     r.config.Lookback,
		EntryZ:       r.config.EntryZ,
		ExitZ:        r.config.ExitZ,
		TimeStopDays: r.config.TimeStopDays,
		CostBPS:      r.config.CostBPS,
	}

	results := &Results{
		RunID:     uuid.NewString(),
		Config:    r.config,
		Tickers:   usable,
		StartedAt: started,
	}
	pairStats := make(map[universe.PairKey]*PairStat)
	var pnlValues []float64

	for i := r.config.Formation; i+r.config.Trade <= len(dates); i += r.config.Trade {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled at cycle %d: %w", results.NumCycles+1, err)
		}

		formStart := dates[i-r.config.Formation]
		formEnd := dates[i-1]
		tradeStart := dates[i]
		tradeEnd := dates[i+r.config.Trade-1]

		chosen := screen.Normalize(screener.Evaluate(ctx, prices, usable, formStart, formEnd))
		results.NumCycles++
		r.metrics.IncCycles()

		ev := CycleEvent{
			Cycle:      results.NumCycles,
			FormStart:  formStart,
			FormEnd:    formEnd,
			TradeStart: tradeStart,
			TradeEnd:   tradeEnd,
			Candidates: len(usable) * (len(usable) - 1) / 2,
			Chosen:     len(chosen),
		}
		results.Cycles = append(results.Cycles, ev)

		log.Info().
			Int("cycle", ev.Cycle).
			Int("chosen", ev.Chosen).
			Str("formation", formStart.Format("2006-01-02")+".."+formEnd.Format("2006-01-02")).
			Str("trading", tradeStart.Format("2006-01-02")+".."+tradeEnd.Format("2006-01-02")).
			Msg("cycle screened")

		cyclePnL := r.tradeCycle(chosen, prices, tradeStart, tradeEnd, params, pairStats)
		pnlValues = append(pnlValues, cyclePnL...)
		r.metrics.AddTradingDays(len(cyclePnL))

		if r.progress != nil {
			r.progress(ev)
		}
	}

	// The run-long PnL series is indexed by consecutive business days
	// starting at the first trade date.
	pnlDates := data.BusinessDaysFrom(dates[r.config.Formation], len(pnlValues))
	results.PnL = make([]data.Point, len(pnlValues))
	for k, v := range pnlValues {
		results.PnL[k] = data.Point{Date: pnlDates[k], Value: v}
	}
	results.Equity = equityCurve(pnlValues)
	results.AnnReturn, results.AnnVol, results.Sharpe = summaryStats(pnlValues)
	results.NumDays = len(pnlValues)
	results.PairStats = sortedPairStats(pairStats)
	results.FinishedAt = r.clock.Now()

	log.Info().
		Str("run_id", results.RunID).
		Int("cycles", results.NumCycles).
		Int("days", results.NumDays).
		Float64("sharpe", results.Sharpe).
		Msg("walk-forward complete")
	return results, nil
}

// loadUniverse loads every ticker's history for the run range. Tickers
// with missing data are excluded; an empty surviving universe is fatal.
func (r *Runner) loadUniverse(ctx context.Context, tickers []string) (map[string]data.PriceSeries, []string, error) {
	prices := make(map[string]data.PriceSeries, len(tickers))
	var usable []string
	for _, t := range tickers {
		series, err := r.store.LoadLogPrices(ctx, t, r.config.Start, r.config.End)
		if err != nil {
			if errors.Is(err, data.ErrMissingData) {
				log.Warn().Str("ticker", t).Err(err).Msg("excluding ticker from universe")
				continue
			}
			return nil, nil, fmt.Errorf("load prices for %s: %w", t, err)
		}
		prices[t] = series
		usable = append(usable, t)
	}
	if len(usable) == 0 {
		return nil, nil, fmt.Errorf("no usable tickers in %s..%s: all %d candidates lack price history",
			r.config.Start.Format("2006-01-02"), r.config.End.Format("2006-01-02"), len(tickers))
	}
	sort.Strings(usable)
	return prices, usable, nil
}

// tradeCycle generates each chosen pair's net returns, reindexes them onto
// the cycle's business-day calendar (absent dates contribute zero), sums
// them into the cycle PnL, and folds per-pair diagnostics into the
// run-long accumulator.
func (r *Runner) tradeCycle(chosen []screen.PairSpec, prices map[string]data.PriceSeries,
	tradeStart, tradeEnd time.Time, params signal.Params, pairStats map[universe.PairKey]*PairStat) []float64 {

	calendar := data.BusinessDays(tradeStart, tradeEnd)
	index := make(map[time.Time]int, len(calendar))
	for k, d := range calendar {
		index[d] = k
	}
	cyclePnL := make([]float64, len(calendar))

	for _, spec := range chosen {
		points := signal.Generate(spec, prices[spec.T1], prices[spec.T2], tradeStart, tradeEnd, params)
		if len(points) == 0 {
			continue
		}

		// Reindex onto the business-day calendar; dates outside it drop.
		reindexed := make([]float64, len(calendar))
		for _, pt := range points {
			if k, ok := index[pt.Date]; ok {
				reindexed[k] = pt.Value
			}
		}

		key := universe.NewPairKey(spec.T1, spec.T2)
		stat, ok := pairStats[key]
		if !ok {
			stat = &PairStat{T1: spec.T1, T2: spec.T2}
			pairStats[key] = stat
		}
		for k, v := range reindexed {
			cyclePnL[k] += v
			stat.RetSum += v
			if v != 0 {
				stat.RetCnt++
			}
		}
		stat.Cycles++
	}
	return cyclePnL
}

// equityCurve is the cumulative product of (1 + pnl).
func equityCurve(pnl []float64) []float64 {
	out := make([]float64, len(pnl))
	eq := 1.0
	for i, v := range pnl {
		eq *= 1 + v
		out[i] = eq
	}
	return out
}

// summaryStats annualizes the daily PnL series. Sharpe is zero when the
// volatility is zero or undefined.
func summaryStats(pnl []float64) (annRet, annVol, sharpe float64) {
	if len(pnl) == 0 {
		return 0, 0, 0
	}
	sum := 0.0
	for _, v := range pnl {
		sum += v
	}
	mean := sum / float64(len(pnl))
	annRet = mean * TradingDaysPerYear

	if len(pnl) > 1 {
		ss := 0.0
		for _, v := range pnl {
			d := v - mean
			ss += d * d
		}
		annVol = math.Sqrt(ss/float64(len(pnl)-1)) * math.Sqrt(TradingDaysPerYear)
	}
	if annVol > 0 {
		sharpe = annRet / annVol
	}
	return annRet, annVol, sharpe
}

func sortedPairStats(m map[universe.PairKey]*PairStat) []PairStat {
	keys := make([]universe.PairKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].T1 != keys[j].T1 {
			return keys[i].T1 < keys[j].T1
		}
		return keys[i].T2 < keys[j].T2
	})
	out := make([]PairStat, len(keys))
	for i, k := range keys {
		out[i] = *m[k]
	}
	return out
}
