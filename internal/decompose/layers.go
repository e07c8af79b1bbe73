package decompose

import (
	"math"

	"github.com/nvandessel/orderlattice/internal/observables"
)

// LayerDecomposition splits the spanning-tree weight into spatial bands.
// All quantities are in bits.
type LayerDecomposition struct {
	Fine   float64 `json:"fine"`
	Meso   float64 `json:"meso"`
	Coarse float64 `json:"coarse"`
	TC     float64 `json:"tc"`
	TCMax  float64 `json:"tc_max"`

	// Edge counts per band, indexed by Band.
	Counts [3]int `json:"counts"`
}

// Order returns the normalized total correlation, clamped to [0, 1].
func (d LayerDecomposition) Order() float64 {
	if d.TCMax <= 0 {
		return 0
	}
	return clamp01(d.TC / d.TCMax)
}

// Resistance returns 1 - Order.
func (d LayerDecomposition) Resistance() float64 {
	return 1 - d.Order()
}

// Finite reports whether every band value is a finite number.
func (d LayerDecomposition) Finite() bool {
	for _, v := range []float64{d.Fine, d.Meso, d.Coarse, d.TC, d.TCMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FromTree attributes each tree edge weight to its band.
func FromTree(t Tree) LayerDecomposition {
	var d LayerDecomposition
	for _, e := range t.Edges {
		switch e.Band {
		case BandFine:
			d.Fine += e.Weight
		case BandMeso:
			d.Meso += e.Weight
		case BandCoarse:
			d.Coarse += e.Weight
		}
		d.Counts[e.Band]++
	}
	d.TC = d.Fine + d.Meso + d.Coarse
	if t.Nodes > 1 {
		d.TCMax = float64(t.Nodes - 1)
	}
	return d
}

// Options configures a decomposition.
type Options struct {
	BlockSize int     `json:"block_size" yaml:"block_size"`
	MacroSize int     `json:"macro_size" yaml:"macro_size"`
	NoiseZ    float64 `json:"noise_z" yaml:"noise_z"` // standard errors a correlation must clear
}

// Decompose builds the correlation graph of agg, extracts its maximum
// spanning tree and returns the band decomposition together with the tree.
func Decompose(agg observables.Aggregate, opts Options) (LayerDecomposition, Tree) {
	geo := Geometry{Size: agg.Size, BlockSize: opts.BlockSize, MacroSize: opts.MacroSize}
	g := BuildGraph(agg, geo, opts.NoiseZ)
	t := MaximumSpanningTree(g, geo)
	return FromTree(t), t
}

// GroundState returns the decomposition of a fully ordered lattice, where
// every pair is perfectly correlated. The nearest-neighbour bonds alone span
// the lattice and win every tie on distance, so only they are considered.
func GroundState(geo Geometry) LayerDecomposition {
	return FromTree(GroundStateTree(geo))
}

// GroundStateTree returns the spanning tree underlying GroundState.
func GroundStateTree(geo Geometry) Tree {
	n := geo.Nodes()
	seen := make(map[[2]int]bool, 2*n)
	edges := make([]Edge, 0, 2*n)
	for i := range n {
		x, y := i%geo.Size, i/geo.Size
		for _, j := range []int{
			y*geo.Size + (x+1)%geo.Size,
			((y+1)%geo.Size)*geo.Size + x,
		} {
			a, b := min(i, j), max(i, j)
			if a == b || seen[[2]int{a, b}] {
				continue
			}
			seen[[2]int{a, b}] = true
			edges = append(edges, Edge{I: a, J: b, Correlation: 1, Weight: 1, Distance: geo.Distance(a, b)})
		}
	}
	return MaximumSpanningTree(Graph{Nodes: n, Edges: edges}, geo)
}
