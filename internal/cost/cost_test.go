package cost

import (
	"math"
	"testing"
)

func TestLegs(t *testing.T) {
	cases := []struct {
		prev, cur, want int
	}{
		{0, 0, 0},
		{1, 1, 0},
		{-1, -1, 0},
		{0, 1, 2},  // open long
		{0, -1, 2}, // open short
		{1, 0, 2},  // close long
		{-1, 0, 2}, // close short
		{1, -1, 4}, // direct flip
		{-1, 1, 4},
	}
	for _, c := range cases {
		if got := Legs(c.prev, c.cur); got != c.want {
			t.Errorf("Legs(%d, %d) = %d, want %d", c.prev, c.cur, got, c.want)
		}
	}
}

func TestApply_FirstDayOpensFromFlat(t *testing.T) {
	// Entering on day zero is an open, not a carried position.
	gross := []float64{0, 0.01}
	positions := []int{1, 1}
	net := Apply(gross, positions, 5)

	wantFirst := -2 * 5 * 1e-4
	if math.Abs(net[0]-wantFirst) > 1e-15 {
		t.Errorf("net[0] = %v, want %v", net[0], wantFirst)
	}
	// Holding is free.
	if math.Abs(net[1]-0.01) > 1e-15 {
		t.Errorf("net[1] = %v, want 0.01", net[1])
	}
}

func TestApply_FlipChargesFourLegs(t *testing.T) {
	gross := []float64{0, 0, 0}
	positions := []int{1, -1, -1}
	net := Apply(gross, positions, 2)

	want := []float64{-2 * 2 * 1e-4, -4 * 2 * 1e-4, 0}
	for i := range want {
		if math.Abs(net[i]-want[i]) > 1e-15 {
			t.Errorf("net[%d] = %v, want %v", i, net[i], want[i])
		}
	}
}

func TestApply_ZeroCost(t *testing.T) {
	gross := []float64{0.01, -0.02, 0.03}
	positions := []int{1, -1, 0}
	net := Apply(gross, positions, 0)
	for i := range gross {
		if net[i] != gross[i] {
			t.Errorf("net[%d] = %v, want gross %v at zero cost", i, net[i], gross[i])
		}
	}
}

func TestApply_FlatSeriesCostsNothing(t *testing.T) {
	gross := []float64{0, 0, 0, 0}
	positions := []int{0, 0, 0, 0}
	for i, v := range Apply(gross, positions, 10) {
		if v != 0 {
			t.Errorf("net[%d] = %v, want 0 for an all-flat trace", i, v)
		}
	}
}
