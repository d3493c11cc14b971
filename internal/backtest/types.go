package backtest

import (
	"time"

	"github.com/spreadrun/spreadrun/internal/data"
)

// Config represents one walk-forward run's parameters.
type Config struct {
	Start        time.Time // overall backtest start
	End          time.Time // overall backtest end
	Formation    int       // trading days per pair-estimation window
	Trade        int       // trading days per trading window
	Lookback     int       // rolling z-score window
	EntryZ       float64   // entry threshold
	ExitZ        float64   // exit threshold
	TimeStopDays int       // max holding period in calendar days
	CostBPS      float64   // per-leg cost, basis points
	WithinSector bool      // restrict pairs to matching sector codes
	Workers      int       // screener fan-out; 0 means NumCPU
	OutputDir    string    // artifact directory
}

// DefaultConfig returns the research defaults.
func DefaultConfig() *Config {
	return &Config{
		Start:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Formation:    126,
		Trade:        21,
		Lookback:     20,
		EntryZ:       2.0,
		ExitZ:        0.5,
		TimeStopDays: 10,
		CostBPS:      1.0,
		OutputDir:    "data/results",
	}
}

// PairStat accumulates a pair's contribution across the whole run. It is
// keyed by unordered ticker pair and never reset mid-run.
type PairStat struct {
	T1     string  `json:"t1"`
	T2     string  `json:"t2"`
	RetSum float64 `json:"ret_sum"`
	RetCnt int     `json:"ret_cnt"` // days with a nonzero return
	Cycles int     `json:"cycles"`  // cycles the pair was selected in
}

// CycleEvent describes one completed walk-forward cycle; it feeds progress
// logging and the monitor's websocket hub.
type CycleEvent struct {
	Cycle      int       `json:"cycle"`
	FormStart  time.Time `json:"form_start"`
	FormEnd    time.Time `json:"form_end"`
	TradeStart time.Time `json:"trade_start"`
	TradeEnd   time.Time `json:"trade_end"`
	Candidates int       `json:"candidates"`
	Chosen     int       `json:"chosen"`
}

// Results is the full output of a walk-forward run.
type Results struct {
	RunID      string       `json:"run_id"`
	Config     *Config      `json:"config"`
	Tickers    []string     `json:"tickers"`
	PnL        []data.Point `json:"pnl"`    // run-long daily portfolio returns
	Equity     []float64    `json:"equity"` // cumulative product of (1 + PnL)
	AnnReturn  float64      `json:"ann_return"`
	AnnVol     float64      `json:"ann_vol"`
	Sharpe     float64      `json:"sharpe"`
	NumDays    int          `json:"num_days"`
	NumCycles  int          `json:"num_cycles"`
	PairStats  []PairStat   `json:"pair_stats"`
	Cycles     []CycleEvent `json:"cycles"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}
