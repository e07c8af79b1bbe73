// Package decompose attributes the total correlation of a sampled lattice to
// spatial scales. It builds a mutual-information graph over sites from
// pairwise spin correlations, extracts its maximum spanning tree, and splits
// the tree weight into Fine, Meso and Coarse bands.
package decompose

import (
	"math"

	"github.com/nvandessel/orderlattice/internal/observables"
)

// Edge is a weighted dependency between two sites.
type Edge struct {
	I, J        int
	Correlation float64 // pair correlation the weight was derived from
	Weight      float64 // mutual-information proxy in bits, [0, 1]
	Distance    int     // toroidal Manhattan distance
}

// Graph is an undirected weighted graph over lattice sites.
type Graph struct {
	Nodes int
	Edges []Edge
}

// MutualInformation returns the mutual information in bits of two +1/-1
// variables with zero mean and correlation c: 1 - H2((1+|c|)/2).
// It is monotone in |c|, 0 at c=0 and 1 at |c|=1.
func MutualInformation(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	c = math.Abs(c)
	if c >= 1 {
		return 1
	}
	p := (1 + c) / 2
	q := 1 - p
	h := -p * math.Log2(p)
	if q > 0 {
		h -= q * math.Log2(q)
	}
	return clamp01(1 - h)
}

// NoiseFloor returns the correlation magnitude below which a pair estimated
// from samples snapshots is indistinguishable from zero at z standard errors.
func NoiseFloor(samples int, z float64) float64 {
	if samples <= 0 {
		return 1
	}
	if z <= 0 {
		return 0
	}
	return math.Min(1, z/math.Sqrt(float64(samples)))
}

// BuildGraph builds the correlation graph of an aggregate. Edge weights use
// the two-point correlation <s_i s_j>; correlations not above the noise
// floor get weight zero.
func BuildGraph(agg observables.Aggregate, geo Geometry, noiseZ float64) Graph {
	floor := NoiseFloor(agg.Samples, noiseZ)
	edges := make([]Edge, len(agg.Pairs))
	for k, p := range agg.Pairs {
		c := agg.TwoPoint[k]
		w := 0.0
		if math.Abs(c) > floor || math.Abs(c) >= 1 {
			w = MutualInformation(c)
		}
		edges[k] = Edge{
			I:           p.I,
			J:           p.J,
			Correlation: c,
			Weight:      w,
			Distance:    geo.Distance(p.I, p.J),
		}
	}
	return Graph{Nodes: geo.Nodes(), Edges: edges}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
