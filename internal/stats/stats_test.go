package stats

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}
	if got := Mean(nil); !math.IsNaN(got) {
		t.Errorf("Mean of empty input = %v, want NaN", got)
	}
}

func TestStdDev(t *testing.T) {
	// Sample std of {2,4,4,4,5,5,7,9} is 2.138... with Bessel correction.
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	want := math.Sqrt(32.0 / 7.0)
	if got := StdDev(x); math.Abs(got-want) > 1e-12 {
		t.Errorf("StdDev = %v, want %v", got, want)
	}
	if got := StdDev([]float64{1}); !math.IsNaN(got) {
		t.Errorf("StdDev of one observation = %v, want NaN", got)
	}
	if got := StdDev([]float64{3, 3, 3}); got != 0 {
		t.Errorf("StdDev of constant series = %v, want 0", got)
	}
}

func TestDiff(t *testing.T) {
	got := Diff([]float64{1, 4, 2, 2})
	want := []float64{3, -2, 0}
	if len(got) != len(want) {
		t.Fatalf("Diff length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if Diff([]float64{1}) != nil {
		t.Error("Diff of one element should be nil")
	}
}

func TestPearsonCorr(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	// Perfect positive and negative linear relationships.
	y := []float64{2, 4, 6, 8, 10}
	if got := PearsonCorr(x, y); math.Abs(got-1) > 1e-12 {
		t.Errorf("corr of y=2x = %v, want 1", got)
	}
	neg := []float64{10, 8, 6, 4, 2}
	if got := PearsonCorr(x, neg); math.Abs(got+1) > 1e-12 {
		t.Errorf("corr of y=-2x = %v, want -1", got)
	}

	// Constant series has no defined correlation.
	if got := PearsonCorr(x, []float64{7, 7, 7, 7, 7}); !math.IsNaN(got) {
		t.Errorf("corr against constant = %v, want NaN", got)
	}
	if got := PearsonCorr(x, []float64{1, 2}); !math.IsNaN(got) {
		t.Errorf("corr of mismatched lengths = %v, want NaN", got)
	}
}

func TestOLS_ExactFit(t *testing.T) {
	// y = 3 + 2x exactly: residuals vanish.
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{3, 5, 7, 9, 11}

	fit, err := OLS(y, x)
	if err != nil {
		t.Fatalf("OLS failed: %v", err)
	}
	if math.Abs(fit.Alpha-3) > 1e-12 || math.Abs(fit.Beta-2) > 1e-12 {
		t.Errorf("fit = (%.6f, %.6f), want (3, 2)", fit.Alpha, fit.Beta)
	}
	for i, r := range fit.Residuals {
		if math.Abs(r) > 1e-12 {
			t.Errorf("residual[%d] = %v, want 0", i, r)
		}
	}
}

func TestOLS_Degenerate(t *testing.T) {
	if _, err := OLS([]float64{1, 2, 3}, []float64{5, 5, 5}); err == nil {
		t.Error("expected error for constant regressor")
	}
	if _, err := OLS([]float64{1, 2}, []float64{1, 2}); err == nil {
		t.Error("expected error for too few observations")
	}
	if _, err := OLS([]float64{1, 2, 3}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestOLS_ResidualsOrthogonal(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2.1, 3.9, 6.2, 7.8, 10.1, 11.9}

	fit, err := OLS(y, x)
	if err != nil {
		t.Fatalf("OLS failed: %v", err)
	}

	// Residuals sum to zero and are orthogonal to the regressor.
	var sum, dot float64
	for i, r := range fit.Residuals {
		sum += r
		dot += r * x[i]
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("residual sum = %v, want 0", sum)
	}
	if math.Abs(dot) > 1e-9 {
		t.Errorf("residual/regressor dot = %v, want 0", dot)
	}
}
