// Package universe resolves the ticker set and its external restrictions:
// which tickers have raw price history, which pairs an upstream
// cointegration scan whitelisted, and which SIC sector each ticker
// belongs to.
package universe

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// PairKey identifies an unordered ticker pair; tickers are stored sorted.
type PairKey struct {
	T1 string
	T2 string
}

// NewPairKey builds a normalized (uppercase, sorted) pair key.
func NewPairKey(a, b string) PairKey {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if b < a {
		a, b = b, a
	}
	return PairKey{T1: a, T2: b}
}

// PairSet is a whitelist of eligible pairs. A nil PairSet means
// "no whitelist" and admits every pair.
type PairSet map[PairKey]struct{}

// Contains reports membership; nil sets admit everything.
func (s PairSet) Contains(a, b string) bool {
	if s == nil {
		return true
	}
	_, ok := s[NewPairKey(a, b)]
	return ok
}

// DiscoverTickers scans rawDir for daily price files and returns the
// sorted ticker list derived from their names.
func DiscoverTickers(rawDir, fileSuffix string) ([]string, error) {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("read raw data dir %s: %w", rawDir, err)
	}
	var tickers []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		tickers = append(tickers, strings.ToUpper(strings.TrimSuffix(name, fileSuffix)))
	}
	sort.Strings(tickers)
	return tickers, nil
}

// LoadWhitelist reads a pairs.csv whitelist (columns ticker1,ticker2 and
// optionally pval). When the pval column exists, rows above pvalMax are
// dropped. A missing file means no whitelist (nil); a malformed file is
// logged and also treated as no whitelist, matching the original tooling.
func LoadWhitelist(path string, pvalMax float64) PairSet {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("pair whitelist unreadable, ignoring")
		}
		return nil
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil || len(rows) < 2 {
		log.Warn().Err(err).Str("path", path).Msg("pair whitelist malformed, ignoring")
		return nil
	}

	t1Col, t2Col, pvCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ticker1", "t1":
			t1Col = i
		case "ticker2", "t2":
			t2Col = i
		case "pval":
			pvCol = i
		}
	}
	if t1Col < 0 || t2Col < 0 {
		log.Warn().Str("path", path).Msg("pair whitelist missing ticker1/ticker2 columns, ignoring")
		return nil
	}

	set := make(PairSet)
	for _, row := range rows[1:] {
		if len(row) <= t1Col || len(row) <= t2Col {
			continue
		}
		if pvCol >= 0 && len(row) > pvCol {
			pv, err := strconv.ParseFloat(strings.TrimSpace(row[pvCol]), 64)
			if err != nil || pv > pvalMax {
				continue
			}
		}
		set[NewPairKey(row[t1Col], row[t2Col])] = struct{}{}
	}
	log.Info().Str("path", path).Int("pairs", len(set)).Float64("pval_max", pvalMax).
		Msg("pair whitelist loaded")
	return set
}

// SectorMapFile returns the expected sector-label path for a labels date.
func SectorMapFile(metaDir, labelsDate string) string {
	return filepath.Join(metaDir, fmt.Sprintf("sic_map_%s.csv", labelsDate))
}

// LoadSectorMap reads a ticker -> two-digit SIC sector map. Its absence is
// fatal when sector restriction is requested.
func LoadSectorMap(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("missing sector labels file %s: sector screening needs SIC labels for the requested date: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read sector labels %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sector labels %s: no rows", path)
	}

	tickCol, sicCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ticker":
			tickCol = i
		case "sic2", "sector":
			sicCol = i
		}
	}
	if tickCol < 0 || sicCol < 0 {
		return nil, fmt.Errorf("sector labels %s: missing ticker/sic2 columns", path)
	}

	out := make(map[string]int)
	for _, row := range rows[1:] {
		if len(row) <= tickCol || len(row) <= sicCol {
			continue
		}
		sic, err := strconv.Atoi(strings.TrimSpace(row[sicCol]))
		if err != nil {
			continue // ticker stays unlabeled; pairs touching it are rejected
		}
		out[strings.ToUpper(strings.TrimSpace(row[tickCol]))] = sic
	}
	return out, nil
}
