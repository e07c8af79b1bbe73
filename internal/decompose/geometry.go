package decompose

import (
	"fmt"

	"github.com/nvandessel/orderlattice/internal/constants"
)

// Band is the spatial scale a spanning-tree edge is attributed to.
type Band int

const (
	// BandFine holds nearest-neighbour edges (toroidal distance 1).
	BandFine Band = iota

	// BandMeso holds longer edges that stay inside one macro-region.
	BandMeso

	// BandCoarse holds longer edges bridging different macro-regions.
	BandCoarse
)

// String returns the band name.
func (b Band) String() string {
	switch b {
	case BandFine:
		return "fine"
	case BandMeso:
		return "meso"
	case BandCoarse:
		return "coarse"
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// Geometry partitions an L x L lattice into square blocks nested inside
// square macro-regions. Edge blocks are truncated when L is not a multiple
// of the block or macro size.
type Geometry struct {
	Size      int
	BlockSize int
	MacroSize int
}

// DefaultGeometry returns 4x4 blocks in 8x8 macro-regions for a lattice of side size.
func DefaultGeometry(size int) Geometry {
	return Geometry{
		Size:      size,
		BlockSize: constants.DefaultBlockSize,
		MacroSize: constants.DefaultMacroSize,
	}
}

// Validate checks that blocks nest inside macro-regions.
func (g Geometry) Validate() error {
	if g.Size < constants.MinLatticeSize {
		return fmt.Errorf("lattice size must be >= %d, got %d", constants.MinLatticeSize, g.Size)
	}
	if g.BlockSize < 1 {
		return fmt.Errorf("block size must be >= 1, got %d", g.BlockSize)
	}
	if g.MacroSize < g.BlockSize {
		return fmt.Errorf("macro size %d must be >= block size %d", g.MacroSize, g.BlockSize)
	}
	if g.MacroSize%g.BlockSize != 0 {
		return fmt.Errorf("macro size %d must be a multiple of block size %d", g.MacroSize, g.BlockSize)
	}
	return nil
}

// Nodes returns the number of sites.
func (g Geometry) Nodes() int { return g.Size * g.Size }

// Block returns the local block index of site i.
func (g Geometry) Block(i int) int {
	x, y := i%g.Size, i/g.Size
	perSide := (g.Size + g.BlockSize - 1) / g.BlockSize
	return (y/g.BlockSize)*perSide + x/g.BlockSize
}

// Macro returns the macro-region index of site i.
func (g Geometry) Macro(i int) int {
	x, y := i%g.Size, i/g.Size
	perSide := (g.Size + g.MacroSize - 1) / g.MacroSize
	return (y/g.MacroSize)*perSide + x/g.MacroSize
}

// Classify assigns the edge (i, j) to a band by spatial range. Adjacent
// sites are Fine wherever they sit, even across a block or macro boundary;
// blocks only shape the visual grouping of sites.
func (g Geometry) Classify(i, j int) Band {
	switch {
	case g.Distance(i, j) == 1:
		return BandFine
	case g.Macro(i) == g.Macro(j):
		return BandMeso
	default:
		return BandCoarse
	}
}

// Distance returns the toroidal Manhattan distance between sites i and j.
func (g Geometry) Distance(i, j int) int {
	dx := torusDelta(i%g.Size, j%g.Size, g.Size)
	dy := torusDelta(i/g.Size, j/g.Size, g.Size)
	return dx + dy
}

func torusDelta(a, b, size int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	return min(d, size-d)
}
