package stats

import (
	"fmt"
	"math"
)

// EngleGranger tests two series for cointegration: OLS of y on x with
// intercept, then an augmented Dickey-Fuller regression (no constant) on
// the residuals with AIC lag selection. Returns the test p-value; small
// values reject the no-cointegration null.
func EngleGranger(y, x []float64) (float64, error) {
	fit, err := OLS(y, x)
	if err != nil {
		return math.NaN(), fmt.Errorf("cointegrating regression: %w", err)
	}
	tau, err := ADFStat(fit.Residuals)
	if err != nil {
		return math.NaN(), fmt.Errorf("adf on residuals: %w", err)
	}
	return CointPValue(tau, len(y)), nil
}

// ADFStat computes the augmented Dickey-Fuller t-statistic on u without a
// constant term: du_t = rho*u_{t-1} + sum(phi_i * du_{t-i}) + e_t. The lag
// order is chosen by AIC over a common sample up to the Schwert rule
// maxlag = 12*(n/100)^0.25, then the statistic is refit on the full
// sample available for the chosen lag.
func ADFStat(u []float64) (float64, error) {
	n := len(u)
	if n < 10 {
		return math.NaN(), ErrDegenerate
	}
	du := Diff(u)

	maxlag := int(12.0 * math.Pow(float64(n)/100.0, 0.25))
	if cap := len(du)/2 - 2; maxlag > cap {
		maxlag = cap
	}
	if maxlag < 0 {
		maxlag = 0
	}

	bestLag, bestAIC := 0, math.Inf(1)
	for k := 0; k <= maxlag; k++ {
		_, ssr, m, err := adfRegress(u, du, k, maxlag)
		if err != nil {
			continue
		}
		aic := float64(m)*math.Log(ssr/float64(m)) + 2.0*float64(k+1)
		if aic < bestAIC {
			bestAIC, bestLag = aic, k
		}
	}
	if math.IsInf(bestAIC, 1) {
		return math.NaN(), ErrDegenerate
	}

	tau, _, _, err := adfRegress(u, du, bestLag, bestLag)
	if err != nil {
		return math.NaN(), err
	}
	return tau, nil
}

// adfRegress runs the ADF regression with k lagged differences, starting
// the sample at index `trim` of du so candidate lag orders share a common
// sample when trim is the overall maxlag. Returns the t-statistic of the
// level coefficient, the residual sum of squares, and the sample size.
func adfRegress(u, du []float64, k, trim int) (tau, ssr float64, m int, err error) {
	start := trim
	if start < k {
		start = k
	}
	m = len(du) - start
	p := k + 1 // level term plus k lagged differences
	if m <= p+1 {
		return math.NaN(), 0, 0, ErrDegenerate
	}

	X := make([][]float64, m)
	yv := make([]float64, m)
	for i := 0; i < m; i++ {
		t := start + i
		row := make([]float64, p)
		row[0] = u[t]
		for j := 1; j <= k; j++ {
			row[j] = du[t-j]
		}
		X[i] = row
		yv[i] = du[t]
	}

	beta, xtxInv, err := solveOLS(X, yv)
	if err != nil {
		return math.NaN(), 0, 0, err
	}

	for i := 0; i < m; i++ {
		pred := 0.0
		for j := 0; j < p; j++ {
			pred += X[i][j] * beta[j]
		}
		r := yv[i] - pred
		ssr += r * r
	}

	s2 := ssr / float64(m-p)
	se := math.Sqrt(s2 * xtxInv[0][0])
	if se == 0 || math.IsNaN(se) {
		return math.NaN(), 0, 0, ErrDegenerate
	}
	return beta[0] / se, ssr, m, nil
}

// solveOLS solves X'X b = X'y by Gauss-Jordan elimination and also returns
// (X'X)^-1 for standard errors. Dimensions here are tiny (maxlag+1).
func solveOLS(X [][]float64, y []float64) ([]float64, [][]float64, error) {
	m, p := len(X), len(X[0])

	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for i := 0; i < p; i++ {
		xtx[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			s := 0.0
			for r := 0; r < m; r++ {
				s += X[r][i] * X[r][j]
			}
			xtx[i][j] = s
		}
		s := 0.0
		for r := 0; r < m; r++ {
			s += X[r][i] * y[r]
		}
		xty[i] = s
	}

	// Augment with identity and reduce.
	aug := make([][]float64, p)
	for i := 0; i < p; i++ {
		aug[i] = make([]float64, 2*p)
		copy(aug[i], xtx[i])
		aug[i][p+i] = 1
	}
	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, nil, ErrDegenerate
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		pv := aug[col][col]
		for j := 0; j < 2*p; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < p; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			for j := 0; j < 2*p; j++ {
				aug[r][j] -= f * aug[col][j]
			}
		}
	}

	inv := make([][]float64, p)
	beta := make([]float64, p)
	for i := 0; i < p; i++ {
		inv[i] = aug[i][p:]
		s := 0.0
		for j := 0; j < p; j++ {
			s += inv[i][j] * xty[j]
		}
		beta[i] = s
	}
	return beta, inv, nil
}

// CointPValue maps an Engle-Granger tau statistic to an approximate
// p-value using the MacKinnon (2010) finite-sample critical values for two
// cointegrated series with a constant. The 1%/5%/10% points are exact;
// between and beyond them the p-value is interpolated log-linearly in tau.
func CointPValue(tau float64, nobs int) float64 {
	if math.IsNaN(tau) {
		return math.NaN()
	}
	T := float64(nobs)
	cv1 := -3.9001 - 10.534/T - 30.03/(T*T)
	cv5 := -3.3377 - 5.967/T - 8.98/(T*T)
	cv10 := -3.0462 - 4.069/T - 5.73/(T*T)

	type knot struct{ cv, p float64 }
	knots := []knot{{cv1, 0.01}, {cv5, 0.05}, {cv10, 0.10}}

	interp := func(a, b knot) float64 {
		// log-linear in p as a function of tau
		la, lb := math.Log(a.p), math.Log(b.p)
		frac := (tau - a.cv) / (b.cv - a.cv)
		return math.Exp(la + frac*(lb-la))
	}

	var p float64
	switch {
	case tau <= cv1:
		p = interp(knots[0], knots[1]) // extrapolate below 1%
	case tau <= cv5:
		p = interp(knots[0], knots[1])
	case tau <= cv10:
		p = interp(knots[1], knots[2])
	default:
		p = interp(knots[1], knots[2]) // extrapolate above 10%
	}

	if p < 1e-6 {
		p = 1e-6
	}
	if p > 0.9999 {
		p = 0.9999
	}
	return p
}
