package backtest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spreadrun/spreadrun/internal/data"
)

func sampleResults() *Results {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	return &Results{
		RunID:   "test-run-id",
		Config:  DefaultConfig(),
		Tickers: []string{"AAA", "BBB"},
		PnL: []data.Point{
			{Date: d1, Value: 0.001},
			{Date: d2, Value: -0.0005},
		},
		Equity:     []float64{1.001, 1.0004995},
		AnnReturn:  0.063,
		AnnVol:     0.021,
		Sharpe:     3.0,
		NumDays:    2,
		NumCycles:  1,
		PairStats:  []PairStat{{T1: "AAA", T2: "BBB", RetSum: 0.0005, RetCnt: 2, Cycles: 1}},
		Cycles:     []CycleEvent{{Cycle: 1, FormStart: d1, FormEnd: d1, TradeStart: d2, TradeEnd: d2, Chosen: 1}},
		FinishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriter_WriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	w := NewWriter(dir)

	if err := w.WriteAll(sampleResults()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	paths := w.GetArtifactPaths()
	for _, p := range []string{paths.EquityCSV, paths.SummaryCSV, paths.PairStatsCSV, paths.ReportMD} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing artifact %s: %v", p, err)
		}
	}
}

func TestWriter_EquityCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.WriteAll(sampleResults()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	f, err := os.Open(w.GetArtifactPaths().EquityCSV)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 3 {
		t.Fatalf("equity CSV has %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "date" || rows[0][1] != "portfolio_ret" || rows[0][2] != "equity" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "2024-01-02" || rows[1][1] != "0.001" {
		t.Errorf("unexpected first data row: %v", rows[1])
	}
}

func TestWriter_SummaryCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.WriteAll(sampleResults()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	f, err := os.Open(w.GetArtifactPaths().SummaryCSV)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 2 {
		t.Fatalf("summary CSV has %d rows, want header + 1", len(rows))
	}
	byName := map[string]string{}
	for i, h := range rows[0] {
		byName[h] = rows[1][i]
	}
	if byName["run_id"] != "test-run-id" {
		t.Errorf("run_id = %q", byName["run_id"])
	}
	if byName["num_cycles"] != "1" || byName["num_days"] != "2" {
		t.Errorf("cycle/day counts = %q/%q", byName["num_cycles"], byName["num_days"])
	}
	if byName["sharpe"] != "3" {
		t.Errorf("sharpe = %q, want 3", byName["sharpe"])
	}
}

func TestWriter_PairStatsCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.WriteAll(sampleResults()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	raw, err := os.ReadFile(w.GetArtifactPaths().PairStatsCSV)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	if !strings.Contains(body, "t1,t2,ret_sum,ret_cnt,cycles") {
		t.Error("missing pair-stats header")
	}
	if !strings.Contains(body, "AAA,BBB") {
		t.Error("missing pair row")
	}
}

func TestWriter_Report(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.WriteAll(sampleResults()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	raw, err := os.ReadFile(w.GetArtifactPaths().ReportMD)
	if err != nil {
		t.Fatal(err)
	}
	report := string(raw)
	for _, want := range []string{
		"# Walk-Forward Pairs Backtest Report",
		"test-run-id",
		"AAA/BBB",
		"## Cycles",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriter_EmptyPairTable(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	res := sampleResults()
	res.PairStats = nil
	if err := w.WriteAll(res); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	raw, _ := os.ReadFile(w.GetArtifactPaths().ReportMD)
	if !strings.Contains(string(raw), "No pairs survived screening") {
		t.Error("report should call out an empty pair table")
	}
}
