// Package metrics instruments the walk-forward engine with Prometheus
// collectors. A nil *Registry is a no-op so library code never has to
// guard instrumentation calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all SpreadRun metrics on a dedicated Prometheus registry.
type Registry struct {
	prom *prometheus.Registry

	CyclesRun      prometheus.Counter
	PairsEvaluated prometheus.Counter
	PairsSelected  prometheus.Counter
	PairRejections *prometheus.CounterVec
	ScreenDuration prometheus.Histogram
	TradingDays    prometheus.Counter
	ActiveRun      prometheus.Gauge
}

// New creates a registry with all collectors registered.
func New() *Registry {
	r := &Registry{prom: prometheus.NewRegistry()}

	r.CyclesRun = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spreadrun_cycles_total",
		Help: "Walk-forward cycles executed",
	})
	r.PairsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spreadrun_pairs_evaluated_total",
		Help: "Candidate pairs passed through the screening gates",
	})
	r.PairsSelected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spreadrun_pairs_selected_total",
		Help: "Pairs surviving all screening gates",
	})
	r.PairRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spreadrun_pair_rejections_total",
		Help: "Pair rejections by screening gate",
	}, []string{"gate"})
	r.ScreenDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spreadrun_screen_duration_seconds",
		Help:    "Duration of per-cycle pair screening",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
	r.TradingDays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spreadrun_trading_days_total",
		Help: "Trading days contributed to the PnL series",
	})
	r.ActiveRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spreadrun_active_run",
		Help: "1 while a backtest run is in progress",
	})

	r.prom.MustRegister(
		r.CyclesRun, r.PairsEvaluated, r.PairsSelected, r.PairRejections,
		r.ScreenDuration, r.TradingDays, r.ActiveRun,
	)
	return r
}

// Prometheus exposes the underlying registry for HTTP handlers.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.prom
}

// IncCycles records a completed cycle.
func (r *Registry) IncCycles() {
	if r != nil {
		r.CyclesRun.Inc()
	}
}

// IncEvaluated records n candidate evaluations.
func (r *Registry) IncEvaluated(n int) {
	if r != nil {
		r.PairsEvaluated.Add(float64(n))
	}
}

// IncSelected records n surviving pairs.
func (r *Registry) IncSelected(n int) {
	if r != nil {
		r.PairsSelected.Add(float64(n))
	}
}

// IncRejection records a rejection at the named gate.
func (r *Registry) IncRejection(gate string) {
	if r != nil {
		r.PairRejections.WithLabelValues(gate).Inc()
	}
}

// ObserveScreenSeconds records a screening pass duration.
func (r *Registry) ObserveScreenSeconds(sec float64) {
	if r != nil {
		r.ScreenDuration.Observe(sec)
	}
}

// AddTradingDays records PnL days appended to the run series.
func (r *Registry) AddTradingDays(n int) {
	if r != nil {
		r.TradingDays.Add(float64(n))
	}
}

// SetActive flags whether a run is in progress.
func (r *Registry) SetActive(active bool) {
	if r == nil {
		return
	}
	if active {
		r.ActiveRun.Set(1)
	} else {
		r.ActiveRun.Set(0)
	}
}
