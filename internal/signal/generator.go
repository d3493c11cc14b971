// Package signal turns a screened pair into a daily position trace and
// net return series. The rolling z-score drives an explicit finite-state
// machine over {FLAT, LONG, SHORT} with loop-local (state, entryDate),
// replacing implicit shift-and-lookup indexing so series boundaries cannot
// misfire.
package signal

import (
	"math"
	"time"

	"github.com/spreadrun/spreadrun/internal/cost"
	"github.com/spreadrun/spreadrun/internal/data"
	"github.com/spreadrun/spreadrun/internal/screen"
)

// Params are the trading parameters applied to every pair in a cycle.
type Params struct {
	Lookback     int     // rolling window length for the z-score
	EntryZ       float64 // |z| entry threshold
	ExitZ        float64 // |z| exit threshold
	TimeStopDays int     // max holding period in calendar days; 0 disables
	CostBPS      float64 // per-leg transaction cost in basis points
}

// Position values.
const (
	Flat  = 0
	Long  = +1
	Short = -1
)

// Generate computes the pair's net return series over the trading window,
// scaled by its normalized weight. The spread is rebuilt over the full
// aligned history with the frozen alpha/beta so the rolling statistics
// have lead-in; returns nil when the window holds no defined z-scores.
func Generate(spec screen.PairSpec, lp1, lp2 data.PriceSeries, tradeStart, tradeEnd time.Time, p Params) []data.Point {
	aligned := data.Align(lp1, lp2)
	dates, positions, spread, ok := trace(spec, aligned, tradeStart, tradeEnd, p)
	if !ok {
		return nil
	}

	// Gross return: yesterday's position times today's spread move. The
	// first window day has no prior position and contributes zero.
	gross := make([]float64, len(dates))
	for k := 1; k < len(dates); k++ {
		gross[k] = float64(positions[k-1]) * (spread[k] - spread[k-1])
	}

	net := cost.Apply(gross, positions, p.CostBPS)

	out := make([]data.Point, len(dates))
	for k := range dates {
		out[k] = data.Point{Date: dates[k], Value: net[k] * spec.Weight}
	}
	return out
}

// Positions exposes the window-restricted position trace (used by the
// orchestrator's diagnostics and by tests).
func Positions(spec screen.PairSpec, lp1, lp2 data.PriceSeries, tradeStart, tradeEnd time.Time, p Params) ([]time.Time, []int) {
	aligned := data.Align(lp1, lp2)
	dates, positions, _, ok := trace(spec, aligned, tradeStart, tradeEnd, p)
	if !ok {
		return nil, nil
	}
	return dates, positions
}

// trace runs steps 1-4: spread, shifted rolling z, FSM scan, window
// restriction with leading-gap flat fill. It returns the window dates,
// the position per date, and the spread restricted to the same dates.
func trace(spec screen.PairSpec, aligned data.AlignedPair, tradeStart, tradeEnd time.Time, p Params) ([]time.Time, []int, []float64, bool) {
	n := aligned.Len()
	if n == 0 {
		return nil, nil, nil, false
	}
	tradeStart, tradeEnd = data.Day(tradeStart), data.Day(tradeEnd)

	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		spread[i] = aligned.LP1[i] - (spec.Alpha + spec.Beta*aligned.LP2[i])
	}

	z, zok := rollingZ(spread, p.Lookback)

	// Scan only dates inside the trading window (entries cannot predate
	// the window), in strict chronological order.
	type scanPoint struct {
		idx int
		pos int
	}
	var scan []scanPoint
	state := Flat
	var entryDate time.Time
	inWindow := func(d time.Time) bool { return !d.Before(tradeStart) && !d.After(tradeEnd) }

	for i := 0; i < n; i++ {
		d := aligned.Dates[i]
		if !inWindow(d) || !zok[i] {
			continue
		}
		zv := z[i]
		if state == Flat {
			switch {
			case zv <= -p.EntryZ:
				state = Long
				entryDate = d
			case zv >= p.EntryZ:
				state = Short
				entryDate = d
			}
		} else {
			// Calendar-day holding period, weekends included: the
			// time-stop fires even while |z| still exceeds the exit
			// threshold.
			holdDays := int(d.Sub(entryDate).Hours() / 24)
			if math.Abs(zv) <= p.ExitZ || (p.TimeStopDays > 0 && holdDays >= p.TimeStopDays) {
				state = Flat
				entryDate = time.Time{}
			}
		}
		scan = append(scan, scanPoint{idx: i, pos: state})
	}
	if len(scan) == 0 {
		return nil, nil, nil, false
	}

	// Restrict to the window; dates before the first defined z-score stay
	// flat, dates without a scan value carry the previous position.
	var dates []time.Time
	var positions []int
	var wspread []float64
	next, last := 0, Flat
	for i := 0; i < n; i++ {
		d := aligned.Dates[i]
		if !inWindow(d) {
			continue
		}
		if next < len(scan) && scan[next].idx == i {
			last = scan[next].pos
			next++
		}
		dates = append(dates, d)
		positions = append(positions, last)
		wspread = append(wspread, spread[i])
	}
	return dates, positions, wspread, true
}

// rollingZ computes z[t] = (spread[t] - mean[t-1]) / std[t-1] where mean
// and std are trailing statistics over up to `lookback` observations
// ending at t-1, requiring at least lookback/2 of them. ok[t] is false
// when the statistic is undefined or the std is zero.
func rollingZ(spread []float64, lookback int) (z []float64, ok []bool) {
	n := len(spread)
	z = make([]float64, n)
	ok = make([]bool, n)
	minPeriods := lookback / 2
	if minPeriods < 2 {
		minPeriods = 2 // sample std needs two observations
	}

	for t := 0; t < n; t++ {
		lo := t - lookback
		if lo < 0 {
			lo = 0
		}
		cnt := t - lo
		if cnt < minPeriods {
			continue
		}
		window := spread[lo:t]
		mu := mean(window)
		sd := sampleStd(window, mu)
		if sd == 0 || math.IsNaN(sd) {
			continue
		}
		z[t] = (spread[t] - mu) / sd
		ok[t] = true
	}
	return z, ok
}

func mean(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func sampleStd(x []float64, mu float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	ss := 0.0
	for _, v := range x {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)-1))
}
