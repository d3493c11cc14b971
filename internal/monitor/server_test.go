package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/spreadrun/spreadrun/internal/metrics"
)

func testServer(t *testing.T, reg *metrics.Registry) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer("127.0.0.1:0", reg)
	ts := httptest.NewServer(s.http.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, metrics.New())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Healthy     bool `json:"healthy"`
		Subscribers int  `json:"subscribers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Healthy)
	require.Equal(t, 0, body.Subscribers)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.New()
	reg.IncCycles()
	_, ts := testServer(t, reg)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "spreadrun_cycles_total 1"),
		"exposition should include the cycle counter")
}

func TestStatusEndpoint(t *testing.T) {
	reg := metrics.New()
	reg.IncCycles()
	reg.IncRejection("correlation")
	reg.IncRejection("beta")
	_, ts := testServer(t, reg)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Metrics map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1.0, body.Metrics["spreadrun_cycles_total"])
	require.Equal(t, 2.0, body.Metrics["spreadrun_pair_rejections_total"],
		"status should sum counters across label sets")
}

func TestProgressWebsocket(t *testing.T) {
	s, ts := testServer(t, metrics.New())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Count() == 1 },
		time.Second, 10*time.Millisecond, "subscriber should register")

	s.Hub().Broadcast(map[string]int{"cycle": 7})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev map[string]int
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, 7, ev["cycle"])
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	h := NewHub()
	require.Equal(t, 0, h.Count())
	h.Broadcast("no-op") // must not panic with an empty client set
}
