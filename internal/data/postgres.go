package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore loads daily prices from a daily_prices(ticker, date, prc)
// table. Queries run under a per-call timeout.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore connects to the given DSN and verifies connectivity.
func NewPostgresStore(dsn string, timeout time.Duration) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}, nil
}

// NewPostgresStoreFromDB wraps an existing connection (used by tests).
func NewPostgresStoreFromDB(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

type priceRow struct {
	Date time.Time `db:"date"`
	Prc  float64   `db:"prc"`
}

// LoadLogPrices implements Store.
func (s *PostgresStore) LoadLogPrices(ctx context.Context, ticker string, start, end time.Time) (PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT date, prc
		FROM daily_prices
		WHERE ticker = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC`

	var rows []priceRow
	if err := s.db.SelectContext(ctx, &rows, query, ticker, Day(start), Day(end)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PriceSeries{}, fmt.Errorf("%w: %s", ErrMissingData, ticker)
		}
		return PriceSeries{}, fmt.Errorf("query daily_prices for %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return PriceSeries{}, fmt.Errorf("%w: %s has no rows in %s..%s",
			ErrMissingData, ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	dates := make([]time.Time, len(rows))
	prices := make([]float64, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
		prices[i] = r.Prc
	}
	series := NewPriceSeries(ticker, dates, prices)
	if series.Len() == 0 {
		return PriceSeries{}, fmt.Errorf("%w: %s rows all non-finite", ErrMissingData, ticker)
	}
	return series, nil
}
