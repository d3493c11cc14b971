package data

import (
	"math"
	"sort"
	"time"
)

// Observation is a single dated log-price sample.
type Observation struct {
	Date     time.Time `json:"date"`
	LogPrice float64   `json:"log_price"`
}

// PriceSeries holds a ticker's date-ordered natural-log price history.
// Dates are strictly increasing, duplicates collapsed to the last value,
// non-finite prices dropped. Immutable once built for a run.
type PriceSeries struct {
	Ticker string        `json:"ticker"`
	Obs    []Observation `json:"obs"`
}

// Point is a generic dated scalar, used for positions and return series.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Day truncates a timestamp to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewPriceSeries builds a clean series from raw (date, price) rows: rows
// are sorted by date, duplicate dates keep the last row, prices must be
// positive and finite to survive, and values are stored as natural logs.
func NewPriceSeries(ticker string, dates []time.Time, prices []float64) PriceSeries {
	type row struct {
		d time.Time
		p float64
	}
	rows := make([]row, 0, len(dates))
	for i, d := range dates {
		rows = append(rows, row{Day(d), prices[i]})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].d.Before(rows[j].d) })

	obs := make([]Observation, 0, len(rows))
	for _, r := range rows {
		if r.p <= 0 || math.IsNaN(r.p) || math.IsInf(r.p, 0) {
			continue
		}
		lp := math.Log(r.p)
		if len(obs) > 0 && obs[len(obs)-1].Date.Equal(r.d) {
			obs[len(obs)-1].LogPrice = lp
			continue
		}
		obs = append(obs, Observation{Date: r.d, LogPrice: lp})
	}
	return PriceSeries{Ticker: ticker, Obs: obs}
}

// Len returns the number of observations.
func (s PriceSeries) Len() int { return len(s.Obs) }

// Dates returns the ordered observation dates.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = o.Date
	}
	return out
}

// Slice returns the sub-series with from <= date <= to.
func (s PriceSeries) Slice(from, to time.Time) PriceSeries {
	from, to = Day(from), Day(to)
	lo := sort.Search(len(s.Obs), func(i int) bool { return !s.Obs[i].Date.Before(from) })
	hi := sort.Search(len(s.Obs), func(i int) bool { return s.Obs[i].Date.After(to) })
	return PriceSeries{Ticker: s.Ticker, Obs: s.Obs[lo:hi]}
}

// AlignedPair is the inner join of two price series on shared dates.
type AlignedPair struct {
	Dates []time.Time
	LP1   []float64
	LP2   []float64
}

// Len returns the number of shared dates.
func (a AlignedPair) Len() int { return len(a.Dates) }

// Align inner-joins two series on their common dates, preserving order.
func Align(s1, s2 PriceSeries) AlignedPair {
	var out AlignedPair
	i, j := 0, 0
	for i < len(s1.Obs) && j < len(s2.Obs) {
		d1, d2 := s1.Obs[i].Date, s2.Obs[j].Date
		switch {
		case d1.Before(d2):
			i++
		case d2.Before(d1):
			j++
		default:
			out.Dates = append(out.Dates, d1)
			out.LP1 = append(out.LP1, s1.Obs[i].LogPrice)
			out.LP2 = append(out.LP2, s2.Obs[j].LogPrice)
			i++
			j++
		}
	}
	return out
}

// BusinessDays returns the Monday-Friday calendar between from and to inclusive.
func BusinessDays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := Day(from); !d.After(Day(to)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// BusinessDaysFrom returns n consecutive business days starting at from
// (or the first business day after it).
func BusinessDaysFrom(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := Day(from); len(out) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// UnionDates merges the sorted observation dates of several series.
func UnionDates(series map[string]PriceSeries) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for _, o := range s.Obs {
			seen[o.Date] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
