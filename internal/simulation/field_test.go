package simulation_test

import (
	"testing"

	"github.com/nvandessel/orderlattice/internal/simulation"
)

// TestFieldRaisesOrder validates A(T, H>0) >= A(T, 0) within noise,
// averaged over three seeds.
func TestFieldRaisesOrder(t *testing.T) {
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:         "field-raises-order",
		Temperatures: []float64{1.5, 2.3, 3.0},
		Fields:       []float64{0, 0.1},
		Seeds:        simulation.Seeds(101, 3),
		Workers:      4,
	})

	simulation.AssertRowInvariants(t, result)
	simulation.AssertNoFallbacks(t, result)
	simulation.AssertFieldRaisesOrder(t, result, 0.1, 0.05)
}
