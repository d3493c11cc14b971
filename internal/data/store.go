package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"encoding/csv"

	"github.com/rs/zerolog/log"
)

// ErrMissingData marks a ticker whose price history is unavailable for the
// requested range. Callers exclude the ticker from the universe; the run
// only fails if no usable tickers remain.
var ErrMissingData = errors.New("missing price data")

// Store is the price loader contract: date-ordered log prices for a ticker
// within [start, end], non-finite entries silently dropped.
type Store interface {
	LoadLogPrices(ctx context.Context, ticker string, start, end time.Time) (PriceSeries, error)
}

// CSVStore reads daily price files named <TICKER>_dsf_1y.csv with
// "date,prc" columns from a raw data directory.
type CSVStore struct {
	rawDir string
}

// NewCSVStore creates a CSV-backed price store rooted at rawDir.
func NewCSVStore(rawDir string) *CSVStore {
	return &CSVStore{rawDir: rawDir}
}

// FileSuffix is the daily-price file naming convention shared with the
// downloader and universe discovery.
const FileSuffix = "_dsf_1y.csv"

// PriceFile returns the raw file path for a ticker.
func (s *CSVStore) PriceFile(ticker string) string {
	return filepath.Join(s.rawDir, strings.ToUpper(ticker)+FileSuffix)
}

// LoadLogPrices implements Store.
func (s *CSVStore) LoadLogPrices(_ context.Context, ticker string, start, end time.Time) (PriceSeries, error) {
	path := s.PriceFile(ticker)
	f, err := os.Open(path)
	if err != nil {
		return PriceSeries{}, fmt.Errorf("%w: %s (%s)", ErrMissingData, ticker, path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return PriceSeries{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return PriceSeries{}, fmt.Errorf("%w: %s (empty file %s)", ErrMissingData, ticker, path)
	}

	dateCol, prcCol := columnIndexes(rows[0])
	if dateCol < 0 || prcCol < 0 {
		return PriceSeries{}, fmt.Errorf("%s: missing date/prc columns", path)
	}

	var dates []time.Time
	var prices []float64
	for _, row := range rows[1:] {
		if len(row) <= dateCol || len(row) <= prcCol {
			continue
		}
		d, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateCol]))
		if err != nil {
			continue
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(row[prcCol]), 64)
		if err != nil {
			continue
		}
		dates = append(dates, d)
		prices = append(prices, p)
	}

	series := NewPriceSeries(strings.ToUpper(ticker), dates, prices).Slice(start, end)
	if series.Len() == 0 {
		return PriceSeries{}, fmt.Errorf("%w: %s has no rows in %s..%s",
			ErrMissingData, ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	log.Debug().Str("ticker", ticker).Int("rows", series.Len()).Msg("loaded price series")
	return series, nil
}

func columnIndexes(header []string) (dateCol, prcCol int) {
	dateCol, prcCol = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "prc", "close", "c":
			prcCol = i
		}
	}
	return dateCol, prcCol
}
