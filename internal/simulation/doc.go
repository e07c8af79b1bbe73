// Package simulation provides a multi-run test harness for validating the
// physical behavior of full sweeps.
//
// The harness exercises the real Monte Carlo engine, decomposer, sweep
// controller and SQLiteResultStore with no mocks. Scenarios describe a
// lattice, a (T, H) grid and one or more base seeds; every run is saved to
// the store and read back, so assertions see exactly what a user of
// `orderlattice runs show` would.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestOrderDropsAcrossTc(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:         "drop-across-tc",
//	        Size:         8,
//	        Temperatures: []float64{1.5, 3.5},
//	    })
//	    simulation.AssertOrdered(t, result, 2.0, 0.6)
//	    simulation.AssertDisordered(t, result, 3.0, 0.3)
//	}
package simulation
