package montecarlo

import "math"

// maxExponent is the largest x for which exp(-x) is still a normal float64.
const maxExponent = 708.0

// AcceptanceProbability returns the Metropolis acceptance probability
// min(1, exp(-dE/T)), clamped to [0, 1].
//
// Degenerate inputs never produce NaN or Inf: dE <= 0 is always accepted,
// T <= 0 or a non-finite ratio rejects every uphill move.
func AcceptanceProbability(dE, temperature float64) float64 {
	if math.IsNaN(dE) {
		return 0
	}
	if dE <= 0 {
		return 1
	}
	if !(temperature > 0) {
		return 0
	}
	x := dE / temperature
	if math.IsNaN(x) || x > maxExponent {
		return 0
	}
	p := math.Exp(-x)
	if p > 1 {
		return 1
	}
	return p
}

// BondProbability returns the Wolff bond activation probability
// 1 - exp(-2J/T), clamped to [0, 1].
func BondProbability(coupling, temperature float64) float64 {
	if !(coupling > 0) {
		return 0
	}
	if !(temperature > 0) {
		return 1
	}
	x := 2 * coupling / temperature
	if math.IsNaN(x) || x > maxExponent {
		return 1
	}
	return -math.Expm1(-x)
}
