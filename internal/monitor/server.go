// Package monitor exposes a backtest run over HTTP: Prometheus metrics,
// health, a metric-family status snapshot, and a websocket feed of cycle
// progress events.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/metrics"
)

// Server serves the monitoring surface for a run.
type Server struct {
	addr     string
	registry *metrics.Registry
	hub      *Hub
	http     *http.Server
	started  time.Time
	upgrader websocket.Upgrader
}

// NewServer creates a monitor bound to addr.
func NewServer(addr string, reg *metrics.Registry) *Server {
	s := &Server{
		addr:     addr,
		registry: reg,
		hub:      NewHub(),
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local operator tooling; no cross-origin policy needed.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg.Prometheus(), promhttp.HandlerOpts{}))
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws/progress", s.handleProgress)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Hub exposes the progress hub so the runner's progress callback can feed it.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("monitor listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"healthy":     true,
		"uptime_sec":  int(time.Since(s.started).Seconds()),
		"subscribers": s.hub.Count(),
	})
}

// handleStatus gathers the metric families into a compact JSON snapshot so
// operators can poll run progress without a Prometheus scraper.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	families, err := s.registry.Prometheus().Gather()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	snapshot := make(map[string]float64, len(families))
	for _, mf := range families {
		snapshot[mf.GetName()] = familyValue(mf)
	}
	writeJSON(w, map[string]interface{}{
		"as_of":   time.Now().UTC(),
		"metrics": snapshot,
	})
}

// familyValue reduces a metric family to a single scalar: counters and
// gauges sum across label sets, histograms report their sample count.
func familyValue(mf *dto.MetricFamily) float64 {
	total := 0.0
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			total += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			total += m.GetGauge().GetValue()
		case dto.MetricType_HISTOGRAM:
			total += float64(m.GetHistogram().GetSampleCount())
		}
	}
	return total
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.add(conn)

	// Reader loop: discard inbound frames, detect disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(conn)
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}
