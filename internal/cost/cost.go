// Package cost converts position transitions into leg-counted transaction
// costs. A spread position has two legs, so opening or closing touches 2
// legs and a direct flip touches all 4.
package cost

// Legs returns the number of legs traded moving from prev to cur position
// (each in {-1, 0, +1}).
func Legs(prev, cur int) int {
	switch {
	case prev == cur:
		return 0
	case prev == 0 || cur == 0:
		return 2
	default: // +1 <-> -1 direct flip
		return 4
	}
}

// Apply nets per-leg costs out of a gross return series. positions[i] is
// the position held on day i; the first day opens from flat. costBPS is
// the per-leg cost in basis points.
func Apply(gross []float64, positions []int, costBPS float64) []float64 {
	net := make([]float64, len(gross))
	prev := 0
	for i := range gross {
		legs := Legs(prev, positions[i])
		net[i] = gross[i] - float64(legs)*costBPS*1e-4
		prev = positions[i]
	}
	return net
}
