// Package config loads SpreadRun's YAML configuration. Flags override
// file values; file values override the defaults below, which match the
// original research runs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BacktestConfig holds the walk-forward run parameters.
type BacktestConfig struct {
	Start        string  `yaml:"start"`
	End          string  `yaml:"end"`
	Formation    int     `yaml:"formation"` // trading days per estimation window
	Trade        int     `yaml:"trade"`     // trading days per trading window
	Lookback     int     `yaml:"lookback"`  // rolling z-score window
	EntryZ       float64 `yaml:"entry_z"`
	ExitZ        float64 `yaml:"exit_z"`
	TimeStopDays int     `yaml:"time_stop"` // max holding period, calendar days
	CostBPS      float64 `yaml:"cost_bps"`  // per-leg cost in basis points
	WithinSector bool    `yaml:"within_sector"`
	LabelsDate   string  `yaml:"labels_date"`
	Workers      int     `yaml:"workers"` // screener fan-out; 0 means NumCPU
}

// GateConfig holds the pair-screening thresholds.
type GateConfig struct {
	PValMax        float64 `yaml:"pval_max"`
	MinLogCorr     float64 `yaml:"min_log_corr"`
	BetaMin        float64 `yaml:"beta_min"`
	BetaMax        float64 `yaml:"beta_max"`
	MinSigmaDiff   float64 `yaml:"min_sigma_diff"`
	MinOverlapDays int     `yaml:"min_overlap_days"`
}

// DataConfig holds storage locations and optional backends.
type DataConfig struct {
	RawDir     string `yaml:"raw_dir"`
	MetaDir    string `yaml:"meta_dir"`
	ResultsDir string `yaml:"results_dir"`
	Postgres   struct {
		DSN            string `yaml:"dsn"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"postgres"`
	Redis struct {
		Addr       string `yaml:"addr"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`
}

// FetchConfig holds the daily-bar downloader settings.
type FetchConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
}

// Config is the full file layout of config/backtest.yaml.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Gates    GateConfig     `yaml:"gates"`
	Data     DataConfig     `yaml:"data"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.Backtest = BacktestConfig{
		Start:        "2023-01-01",
		End:          "2024-12-31",
		Formation:    126,
		Trade:        21,
		Lookback:     20,
		EntryZ:       2.0,
		ExitZ:        0.5,
		TimeStopDays: 10,
		CostBPS:      1.0,
	}
	c.Gates = GateConfig{
		PValMax:        0.05,
		MinLogCorr:     0.8,
		BetaMin:        0.5,
		BetaMax:        2.0,
		MinSigmaDiff:   1e-4,
		MinOverlapDays: 100,
	}
	c.Data.RawDir = "data/raw"
	c.Data.MetaDir = "data/meta"
	c.Data.ResultsDir = "data/results"
	c.Data.Postgres.TimeoutSeconds = 10
	c.Data.Redis.TTLSeconds = 3600
	c.Fetch = FetchConfig{
		BaseURL:        "https://api.polygon.io",
		APIKeyEnv:      "POLYGON_API_KEY",
		RequestsPerSec: 4,
		Burst:          4,
	}
	return c
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults untouched.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects parameter combinations that cannot produce a run.
func (c *Config) Validate() error {
	b := c.Backtest
	if b.Formation <= 0 || b.Trade <= 0 || b.Lookback <= 0 {
		return fmt.Errorf("formation/trade/lookback must be positive (got %d/%d/%d)",
			b.Formation, b.Trade, b.Lookback)
	}
	if b.EntryZ <= b.ExitZ {
		return fmt.Errorf("entry_z %.2f must exceed exit_z %.2f", b.EntryZ, b.ExitZ)
	}
	if b.CostBPS < 0 {
		return fmt.Errorf("cost_bps must be non-negative, got %.2f", b.CostBPS)
	}
	if _, err := time.Parse("2006-01-02", b.Start); err != nil {
		return fmt.Errorf("start date %q: %w", b.Start, err)
	}
	if _, err := time.Parse("2006-01-02", b.End); err != nil {
		return fmt.Errorf("end date %q: %w", b.End, err)
	}
	return nil
}

// PostgresTimeout returns the configured query timeout.
func (d *DataConfig) PostgresTimeout() time.Duration {
	return time.Duration(d.Postgres.TimeoutSeconds) * time.Second
}

// RedisTTL returns the configured cache TTL.
func (d *DataConfig) RedisTTL() time.Duration {
	return time.Duration(d.Redis.TTLSeconds) * time.Second
}
