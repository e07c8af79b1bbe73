// Package constants provides named constants used throughout the orderlattice codebase.
// This centralizes physics defaults and run parameters for better maintainability.
package constants

// Lattice geometry defaults.
const (
	// DefaultLatticeSize is the default side length L of the square lattice (N = L*L sites).
	DefaultLatticeSize = 16

	// MinLatticeSize is the smallest side length for which periodic neighbours are distinct
	// enough to be meaningful.
	MinLatticeSize = 2

	// DefaultBlockSize is the side length of a local block used by the Meso band.
	DefaultBlockSize = 4

	// DefaultMacroSize is the side length of a macro-region used by the Coarse band.
	// Must be a multiple of the block size for blocks to nest cleanly.
	DefaultMacroSize = 8
)

// Physics constants in natural units (k_B = 1).
const (
	// DefaultCoupling is the ferromagnetic coupling constant J.
	DefaultCoupling = 1.0

	// CriticalTemperature is the Onsager critical temperature of the infinite
	// square lattice for J=1, H=0: 2 / ln(1 + sqrt(2)).
	CriticalTemperature = 2.269185314213022
)

// Monte Carlo schedule defaults, counted in sweeps (N attempted flips per sweep).
const (
	// DefaultEquilibrationSweeps is the number of sweeps discarded before sampling.
	DefaultEquilibrationSweeps = 1000

	// DefaultSamplingSweeps is the number of sweeps run while sampling.
	DefaultSamplingSweeps = 2000

	// DefaultSampleInterval is the number of sweeps between snapshots.
	DefaultSampleInterval = 2

	// DefaultMaxSweeps caps equilibration + sampling sweeps for a single point.
	DefaultMaxSweeps = 1_000_000

	// MetropolisMinSweepsPerSide scales the sane minimum equilibration for
	// Metropolis: MetropolisMinSweepsPerSide * L sweeps.
	MetropolisMinSweepsPerSide = 20

	// WolffMinSweepsPerSide scales the sane minimum equilibration for Wolff.
	WolffMinSweepsPerSide = 5
)

// Correlation sampling defaults.
const (
	// DefaultFullPairwiseMaxL is the largest L for which every site pair is sampled.
	DefaultFullPairwiseMaxL = 16

	// DefaultMaxSeparation bounds the toroidal Chebyshev separation of sampled
	// pairs on lattices larger than DefaultFullPairwiseMaxL.
	DefaultMaxSeparation = 4

	// DefaultLongRangeSamples is the number of random long-range partners per
	// site added on large lattices so the graph still carries Coarse edges.
	DefaultLongRangeSamples = 4

	// DefaultNoiseZ is the number of standard errors a pair correlation must
	// exceed before its edge counts as significant.
	DefaultNoiseZ = 3.0
)

// Sweep grid defaults.
var (
	// DefaultFields are the external field values swept by default.
	DefaultFields = []float64{0, 0.02}
)

// DefaultBaseSeed is the base seed from which per-point random streams are derived.
const DefaultBaseSeed uint64 = 20251223
