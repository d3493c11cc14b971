// Package fetch downloads daily price bars and writes the raw CSV layout
// the price store reads. The HTTP client is rate limited and wrapped in a
// circuit breaker so a misbehaving provider fails fast instead of burning
// the request budget.
package fetch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Bar is one daily aggregate.
type Bar struct {
	Date  time.Time
	Close float64
}

// Fetcher pulls daily aggregates from a Polygon-style REST API.
type Fetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New creates a fetcher. requestsPerSec and burst bound the provider's
// rate limit; the breaker opens after five consecutive failures.
func New(baseURL, apiKey string, requestsPerSec float64, burst int) *Fetcher {
	if requestsPerSec <= 0 {
		requestsPerSec = 4
	}
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "daily-bars",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("fetch breaker state change")
			},
		}),
	}
}

type aggsResponse struct {
	Results []struct {
		T int64   `json:"t"` // epoch millis
		C float64 `json:"c"`
	} `json:"results"`
	Status string `json:"status"`
}

// DailyBars fetches the daily close series for a ticker.
func (f *Fetcher) DailyBars(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=50000&apiKey=%s",
		f.baseURL, strings.ToUpper(ticker),
		start.Format("2006-01-02"), end.Format("2006-01-02"), f.apiKey)

	body, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("provider returned %d for %s", resp.StatusCode, ticker)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", ticker, err)
	}

	var parsed aggsResponse
	if err := json.Unmarshal(body.([]byte), &parsed); err != nil {
		return nil, fmt.Errorf("decode daily bars for %s: %w", ticker, err)
	}

	bars := make([]Bar, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		bars = append(bars, Bar{
			Date:  time.UnixMilli(r.T).UTC(),
			Close: r.C,
		})
	}
	return bars, nil
}

// WriteCSV stores bars in the raw directory using the store's file naming
// convention, with "date,prc" columns.
func WriteCSV(rawDir, ticker, fileSuffix string, bars []Bar) (string, error) {
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return "", fmt.Errorf("create raw dir %s: %w", rawDir, err)
	}
	path := filepath.Join(rawDir, strings.ToUpper(ticker)+fileSuffix)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	rows := [][]string{{"date", "prc"}}
	for _, b := range bars {
		rows = append(rows, []string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Close, 'g', -1, 64),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	cw.Flush()
	return path, cw.Error()
}
