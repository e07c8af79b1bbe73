package simulation_test

import (
	"testing"

	"github.com/nvandessel/orderlattice/internal/simulation"
)

// TestOrderedLatticeIsFine validates band attribution deep in the ordered
// phase: every pair is almost perfectly correlated, ties go to the shortest
// edge, so the tree is built from nearest-neighbour bonds only.
func TestOrderedLatticeIsFine(t *testing.T) {
	r := simulation.NewRunner(t)
	result := r.Run(simulation.Scenario{
		Name:         "fine-only",
		Size:         16,
		Temperatures: []float64{0.5, 0.8},
		Workers:      2,
	})

	simulation.AssertRowInvariants(t, result)
	simulation.AssertBandDominates(t, result, "fine", 1.0)

	row, ok := simulation.RowAt(result.Runs[0], 0.5, 0)
	if !ok {
		t.Fatal("missing row T=0.5")
	}
	if row.Meso != 0 || row.Coarse != 0 {
		t.Errorf("T=0.5 bands = (%.3f, %.3f, %.3f), want all weight in Fine", row.Fine, row.Meso, row.Coarse)
	}
	if row.Fine < 0.99*row.TCMax {
		t.Errorf("T=0.5 Fine = %.3f, want ~%.0f", row.Fine, row.TCMax)
	}
}
