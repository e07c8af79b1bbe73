// Package montecarlo evolves a spin lattice with Metropolis single-spin and
// Wolff cluster dynamics under a temperature T, coupling J and external field H.
package montecarlo

import (
	"fmt"
	"math"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/lattice"
)

// Params is the immutable configuration of one simulation run at a single
// (T, H) point.
type Params struct {
	// Temperature is T in natural units (k_B = 1). Must be > 0.
	Temperature float64

	// Field is the external field H. Any finite sign.
	Field float64

	// Coupling is the ferromagnetic coupling J. Default: 1.
	Coupling float64

	// Size is the lattice side L. Default: 16.
	Size int

	// EquilibrationSweeps are discarded before sampling begins.
	EquilibrationSweeps int

	// SamplingSweeps are run while snapshots are taken.
	SamplingSweeps int

	// SampleInterval is the number of sweeps between snapshots.
	SampleInterval int

	// Rule selects Metropolis or Wolff dynamics.
	Rule constants.UpdateRule

	// Order selects random or sequential site visits (Metropolis only).
	Order constants.SiteOrder

	// Init selects the starting configuration.
	Init constants.InitPolicy
}

// DefaultParams returns parameters for a 16x16 Metropolis run at T_c, H=0.
func DefaultParams() Params {
	return Params{
		Temperature:         constants.CriticalTemperature,
		Field:               0,
		Coupling:            constants.DefaultCoupling,
		Size:                constants.DefaultLatticeSize,
		EquilibrationSweeps: constants.DefaultEquilibrationSweeps,
		SamplingSweeps:      constants.DefaultSamplingSweeps,
		SampleInterval:      constants.DefaultSampleInterval,
		Rule:                constants.RuleMetropolis,
		Order:               constants.OrderRandom,
		Init:                constants.InitAuto,
	}
}

// Validate checks the parameters needed to build an engine.
func (p Params) Validate() error {
	if p.Size < constants.MinLatticeSize {
		return fmt.Errorf("lattice size must be >= %d, got %d", constants.MinLatticeSize, p.Size)
	}
	if !(p.Temperature > 0) || math.IsInf(p.Temperature, 0) {
		return fmt.Errorf("temperature must be positive and finite, got %v", p.Temperature)
	}
	if math.IsNaN(p.Field) || math.IsInf(p.Field, 0) {
		return fmt.Errorf("field must be finite, got %v", p.Field)
	}
	if !(p.Coupling > 0) || math.IsInf(p.Coupling, 0) {
		return fmt.Errorf("coupling must be positive and finite, got %v", p.Coupling)
	}
	if !p.Rule.Valid() {
		return fmt.Errorf("invalid update rule: %q (valid: metropolis, wolff)", p.Rule)
	}
	if p.Order != "" && !p.Order.Valid() {
		return fmt.Errorf("invalid site order: %q (valid: random, sequential)", p.Order)
	}
	if p.Init != "" && !p.Init.Valid() {
		return fmt.Errorf("invalid init policy: %q (valid: auto, aligned, random)", p.Init)
	}
	if p.EquilibrationSweeps < 0 {
		return fmt.Errorf("equilibration sweeps must be non-negative, got %d", p.EquilibrationSweeps)
	}
	if p.SamplingSweeps < 0 {
		return fmt.Errorf("sampling sweeps must be non-negative, got %d", p.SamplingSweeps)
	}
	if p.SampleInterval < 1 {
		return fmt.Errorf("sample interval must be >= 1, got %d", p.SampleInterval)
	}
	return nil
}

// LatticeInit resolves the init policy to a concrete lattice start.
// InitAuto starts cold (aligned) below T_c and hot (random) otherwise.
func (p Params) LatticeInit() lattice.Init {
	switch p.Init {
	case constants.InitAligned:
		return lattice.InitAligned
	case constants.InitRandom:
		return lattice.InitRandom
	}
	if p.Temperature < constants.CriticalTemperature {
		return lattice.InitAligned
	}
	return lattice.InitRandom
}

// Snapshots returns how many snapshots a run with these parameters takes.
func (p Params) Snapshots() int {
	if p.SampleInterval < 1 {
		return 0
	}
	return p.SamplingSweeps / p.SampleInterval
}

// TotalSweeps returns equilibration plus sampling sweeps.
func (p Params) TotalSweeps() int {
	return p.EquilibrationSweeps + p.SamplingSweeps
}

// MinEquilibrationSweeps returns a sane minimum number of equilibration
// sweeps for a lattice of side size under rule. Runs below it are flagged,
// not rejected.
func MinEquilibrationSweeps(size int, rule constants.UpdateRule) int {
	if rule == constants.RuleWolff {
		return constants.WolffMinSweepsPerSide * size
	}
	return constants.MetropolisMinSweepsPerSide * size
}
