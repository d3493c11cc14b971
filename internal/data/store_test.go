package data

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePriceFile(t *testing.T, dir, ticker, body string) {
	t.Helper()
	path := filepath.Join(dir, ticker+FileSuffix)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCSVStore_LoadLogPrices(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "AAA", "date,prc\n2024-01-02,100\n2024-01-03,110\n2024-01-04,121\n")

	store := NewCSVStore(dir)
	series, err := store.LoadLogPrices(context.Background(), "aaa",
		d(2024, 1, 1), d(2024, 12, 31))
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	require.Equal(t, "AAA", series.Ticker)
	require.InDelta(t, math.Log(110), series.Obs[1].LogPrice, 1e-12)
}

func TestCSVStore_RangeFilter(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "AAA", "date,prc\n2024-01-02,100\n2024-02-01,110\n2024-03-01,121\n")

	store := NewCSVStore(dir)
	series, err := store.LoadLogPrices(context.Background(), "AAA",
		d(2024, 1, 15), d(2024, 2, 15))
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	require.True(t, series.Obs[0].Date.Equal(d(2024, 2, 1)))
}

func TestCSVStore_MissingFile(t *testing.T) {
	store := NewCSVStore(t.TempDir())
	_, err := store.LoadLogPrices(context.Background(), "NOPE",
		d(2024, 1, 1), d(2024, 12, 31))
	require.ErrorIs(t, err, ErrMissingData)
}

func TestCSVStore_EmptyRange(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "AAA", "date,prc\n2024-01-02,100\n")

	store := NewCSVStore(dir)
	_, err := store.LoadLogPrices(context.Background(), "AAA",
		d(2025, 1, 1), d(2025, 12, 31))
	require.ErrorIs(t, err, ErrMissingData)
}

func TestCSVStore_HeaderVariants(t *testing.T) {
	dir := t.TempDir()
	// Downloader output uses "close"; research exports use "prc".
	writePriceFile(t, dir, "BBB", "date,volume,close\n2024-01-02,5000,50\n")

	store := NewCSVStore(dir)
	series, err := store.LoadLogPrices(context.Background(), "BBB",
		d(2024, 1, 1), d(2024, 12, 31))
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	require.InDelta(t, math.Log(50), series.Obs[0].LogPrice, 1e-12)
}

func TestCSVStore_SkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "CCC",
		"date,prc\nnot-a-date,100\n2024-01-03,not-a-price\n2024-01-04,121\n")

	store := NewCSVStore(dir)
	series, err := store.LoadLogPrices(context.Background(), "CCC",
		d(2024, 1, 1), d(2024, 12, 31))
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
}

func TestCSVStore_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	writePriceFile(t, dir, "DDD", "timestamp,value\n1,2\n")

	store := NewCSVStore(dir)
	_, err := store.LoadLogPrices(context.Background(), "DDD",
		d(2024, 1, 1), d(2024, 12, 31))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMissingData),
		"a present but unparseable file is a hard error, not missing data")
}

func TestCSVStore_PriceFileUppercasesTicker(t *testing.T) {
	store := NewCSVStore("/data/raw")
	require.Equal(t, filepath.Join("/data/raw", "MSFT"+FileSuffix), store.PriceFile("msft"))
}
