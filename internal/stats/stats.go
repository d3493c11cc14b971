// Package stats provides the numeric helpers behind pair screening:
// descriptive statistics, two-variable OLS, and the Engle-Granger
// cointegration test used as the stationarity gate.
package stats

import (
	"errors"
	"math"
)

// ErrDegenerate marks a fit that cannot be estimated (too few points or a
// constant regressor). Screening treats it as a statistical-test failure.
var ErrDegenerate = errors.New("degenerate regression input")

// Mean returns the arithmetic mean, NaN for empty input.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// StdDev returns the Bessel-corrected sample standard deviation,
// NaN when fewer than two observations exist.
func StdDev(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return math.NaN()
	}
	mu := Mean(x)
	ss := 0.0
	for _, v := range x {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Diff returns first differences x[i+1]-x[i].
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// PearsonCorr returns the Pearson correlation of x and y, NaN when either
// series is constant or the lengths differ.
func PearsonCorr(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// OLSFit holds a two-variable least-squares fit y = alpha + beta*x.
type OLSFit struct {
	Alpha     float64
	Beta      float64
	Residuals []float64
}

// OLS fits y = alpha + beta*x by ordinary least squares.
func OLS(y, x []float64) (OLSFit, error) {
	n := len(y)
	if n != len(x) || n < 3 {
		return OLSFit{}, ErrDegenerate
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		sxy += dx * (y[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return OLSFit{}, ErrDegenerate
	}
	beta := sxy / sxx
	alpha := my - beta*mx

	res := make([]float64, n)
	for i := 0; i < n; i++ {
		res[i] = y[i] - (alpha + beta*x[i])
		if math.IsNaN(res[i]) || math.IsInf(res[i], 0) {
			return OLSFit{}, ErrDegenerate
		}
	}
	return OLSFit{Alpha: alpha, Beta: beta, Residuals: res}, nil
}
