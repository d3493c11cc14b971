package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Writer persists run artifacts: the daily PnL/equity table, the run
// summary, the per-pair diagnostics table, and a markdown report.
type Writer struct {
	outputDir string
}

// ArtifactPaths lists the files a run produces.
type ArtifactPaths struct {
	EquityCSV    string
	SummaryCSV   string
	PairStatsCSV string
	ReportMD     string
}

// NewWriter creates a writer rooted at outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// GetOutputDir returns the artifact directory.
func (w *Writer) GetOutputDir() string { return w.outputDir }

// GetArtifactPaths returns the artifact file locations.
func (w *Writer) GetArtifactPaths() ArtifactPaths {
	return ArtifactPaths{
		EquityCSV:    filepath.Join(w.outputDir, "equity_walkforward.csv"),
		SummaryCSV:   filepath.Join(w.outputDir, "wf_summary.csv"),
		PairStatsCSV: filepath.Join(w.outputDir, "wf_pairs_stats.csv"),
		ReportMD:     filepath.Join(w.outputDir, "wf_report.md"),
	}
}

// WriteAll persists every artifact for the run.
func (w *Writer) WriteAll(results *Results) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", w.outputDir, err)
	}
	paths := w.GetArtifactPaths()
	if err := w.writeEquity(paths.EquityCSV, results); err != nil {
		return err
	}
	if err := w.writeSummary(paths.SummaryCSV, results); err != nil {
		return err
	}
	if err := w.writePairStats(paths.PairStatsCSV, results); err != nil {
		return err
	}
	if err := w.writeReport(paths.ReportMD, results); err != nil {
		return err
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) writeEquity(path string, results *Results) error {
	rows := [][]string{{"date", "portfolio_ret", "equity"}}
	for i, pt := range results.PnL {
		rows = append(rows, []string{
			pt.Date.Format("2006-01-02"),
			strconv.FormatFloat(pt.Value, 'g', -1, 64),
			strconv.FormatFloat(results.Equity[i], 'g', -1, 64),
		})
	}
	return writeCSV(path, rows)
}

func (w *Writer) writeSummary(path string, results *Results) error {
	c := results.Config
	rows := [][]string{
		{"run_id", "start", "end", "formation", "trade", "lookback", "entry_z", "exit_z",
			"time_stop", "cost_bps", "within_sector", "ann_return", "ann_vol", "sharpe",
			"num_days", "num_cycles"},
		{
			results.RunID,
			c.Start.Format("2006-01-02"),
			c.End.Format("2006-01-02"),
			strconv.Itoa(c.Formation),
			strconv.Itoa(c.Trade),
			strconv.Itoa(c.Lookback),
			strconv.FormatFloat(c.EntryZ, 'g', -1, 64),
			strconv.FormatFloat(c.ExitZ, 'g', -1, 64),
			strconv.Itoa(c.TimeStopDays),
			strconv.FormatFloat(c.CostBPS, 'g', -1, 64),
			strconv.FormatBool(c.WithinSector),
			strconv.FormatFloat(results.AnnReturn, 'g', -1, 64),
			strconv.FormatFloat(results.AnnVol, 'g', -1, 64),
			strconv.FormatFloat(results.Sharpe, 'g', -1, 64),
			strconv.Itoa(results.NumDays),
			strconv.Itoa(results.NumCycles),
		},
	}
	return writeCSV(path, rows)
}

func (w *Writer) writePairStats(path string, results *Results) error {
	rows := [][]string{{"t1", "t2", "ret_sum", "ret_cnt", "cycles"}}
	for _, s := range results.PairStats {
		rows = append(rows, []string{
			s.T1, s.T2,
			strconv.FormatFloat(s.RetSum, 'g', -1, 64),
			strconv.Itoa(s.RetCnt),
			strconv.Itoa(s.Cycles),
		})
	}
	return writeCSV(path, rows)
}

func (w *Writer) writeReport(path string, results *Results) error {
	var b strings.Builder
	c := results.Config

	b.WriteString("# Walk-Forward Pairs Backtest Report\n\n")
	b.WriteString(fmt.Sprintf("**Run**: %s\n", results.RunID))
	b.WriteString(fmt.Sprintf("**Generated**: %s\n", results.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	b.WriteString(fmt.Sprintf("**Period**: %s to %s\n",
		c.Start.Format("2006-01-02"), c.End.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("**Configuration**: formation=%d trade=%d lookback=%d entry_z=%.2f exit_z=%.2f time_stop=%dd cost_bps=%.2f within_sector=%v\n\n",
		c.Formation, c.Trade, c.Lookback, c.EntryZ, c.ExitZ, c.TimeStopDays, c.CostBPS, c.WithinSector))

	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- **Cycles**: %d\n", results.NumCycles))
	b.WriteString(fmt.Sprintf("- **Trading days**: %d\n", results.NumDays))
	b.WriteString(fmt.Sprintf("- **Annualized return**: %.4f\n", results.AnnReturn))
	b.WriteString(fmt.Sprintf("- **Annualized volatility**: %.4f\n", results.AnnVol))
	b.WriteString(fmt.Sprintf("- **Sharpe**: %.2f\n", results.Sharpe))
	if n := len(results.Equity); n > 0 {
		b.WriteString(fmt.Sprintf("- **Final equity**: %.4f\n", results.Equity[n-1]))
	}
	b.WriteString("\n")

	b.WriteString("## Pairs\n\n")
	if len(results.PairStats) == 0 {
		b.WriteString("No pairs survived screening in any cycle.\n")
	} else {
		b.WriteString("| pair | cum return | active days | cycles |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, s := range results.PairStats {
			b.WriteString(fmt.Sprintf("| %s/%s | %.6f | %d | %d |\n", s.T1, s.T2, s.RetSum, s.RetCnt, s.Cycles))
		}
	}
	b.WriteString("\n## Cycles\n\n")
	b.WriteString("| # | formation | trading | chosen |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, cy := range results.Cycles {
		b.WriteString(fmt.Sprintf("| %d | %s..%s | %s..%s | %d |\n",
			cy.Cycle,
			cy.FormStart.Format("2006-01-02"), cy.FormEnd.Format("2006-01-02"),
			cy.TradeStart.Format("2006-01-02"), cy.TradeEnd.Format("2006-01-02"),
			cy.Chosen))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
