package metrics

import (
	"testing"
)

func TestNilRegistryIsNoOp(t *testing.T) {
	var r *Registry
	// None of these may panic on a nil receiver.
	r.IncCycles()
	r.IncEvaluated(10)
	r.IncSelected(3)
	r.IncRejection("correlation")
	r.ObserveScreenSeconds(0.5)
	r.AddTradingDays(21)
	r.SetActive(true)
	r.SetActive(false)
	if r.Prometheus() != nil {
		t.Error("nil registry should expose a nil prometheus registry")
	}
}

func gatherValue(t *testing.T, r *Registry, name string) float64 {
	t.Helper()
	families, err := r.Prometheus().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				total += m.GetGauge().GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCounters(t *testing.T) {
	r := New()
	r.IncCycles()
	r.IncCycles()
	r.IncEvaluated(45)
	r.IncSelected(3)
	r.AddTradingDays(21)

	if got := gatherValue(t, r, "spreadrun_cycles_total"); got != 2 {
		t.Errorf("cycles = %v, want 2", got)
	}
	if got := gatherValue(t, r, "spreadrun_pairs_evaluated_total"); got != 45 {
		t.Errorf("evaluated = %v, want 45", got)
	}
	if got := gatherValue(t, r, "spreadrun_pairs_selected_total"); got != 3 {
		t.Errorf("selected = %v, want 3", got)
	}
	if got := gatherValue(t, r, "spreadrun_trading_days_total"); got != 21 {
		t.Errorf("trading days = %v, want 21", got)
	}
}

func TestRejectionLabels(t *testing.T) {
	r := New()
	r.IncRejection("correlation")
	r.IncRejection("correlation")
	r.IncRejection("cointegration")

	// Summed across gates.
	if got := gatherValue(t, r, "spreadrun_pair_rejections_total"); got != 3 {
		t.Errorf("rejections = %v, want 3", got)
	}
}

func TestActiveGauge(t *testing.T) {
	r := New()
	r.SetActive(true)
	if got := gatherValue(t, r, "spreadrun_active_run"); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	r.SetActive(false)
	if got := gatherValue(t, r, "spreadrun_active_run"); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
}
