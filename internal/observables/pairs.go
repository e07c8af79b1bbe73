package observables

import (
	"math/rand/v2"
	"sort"
)

// Pair identifies two distinct sites, I < J.
type Pair struct {
	I, J int
}

// PairOptions bounds which site pairs are sampled.
type PairOptions struct {
	// FullPairwiseMaxL is the largest lattice side for which every pair is
	// sampled. Default: 16.
	FullPairwiseMaxL int `json:"full_pairwise_max_l" yaml:"full_pairwise_max_l"`

	// MaxSeparation is the toroidal Chebyshev separation within which all
	// pairs are sampled on larger lattices. Default: 4.
	MaxSeparation int `json:"max_separation" yaml:"max_separation"`

	// LongRangeSamples is the number of random partners beyond MaxSeparation
	// added per site on larger lattices. Default: 4.
	LongRangeSamples int `json:"long_range_samples" yaml:"long_range_samples"`
}

// SelectPairs returns the sampled pair set for a lattice of side size, sorted
// by (I, J). rng is only consulted for long-range samples on lattices larger
// than FullPairwiseMaxL; the result is deterministic for a given rng state.
func SelectPairs(size int, opts PairOptions, rng *rand.Rand) []Pair {
	n := size * size
	if size <= opts.FullPairwiseMaxL || opts.MaxSeparation <= 0 {
		pairs := make([]Pair, 0, n*(n-1)/2)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, Pair{I: i, J: j})
			}
		}
		return pairs
	}

	seen := make(map[Pair]struct{})
	add := func(a, b int) {
		if a == b {
			return
		}
		if a > b {
			a, b = b, a
		}
		seen[Pair{I: a, J: b}] = struct{}{}
	}

	r := opts.MaxSeparation
	for i := 0; i < n; i++ {
		x, y := i%size, i/size
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				add(i, wrapIndex(x+dx, y+dy, size))
			}
		}
	}

	if rng != nil && opts.LongRangeSamples > 0 {
		for i := 0; i < n; i++ {
			x, y := i%size, i/size
			added := 0
			// bounded retries keep this finite on lattices barely larger than 2r+1
			for try := 0; added < opts.LongRangeSamples && try < 16*opts.LongRangeSamples; try++ {
				j := rng.IntN(n)
				if Separation(x, y, j%size, j/size, size) <= r {
					continue
				}
				add(i, j)
				added++
			}
		}
	}

	pairs := make([]Pair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
	return pairs
}

// Separation returns the toroidal Chebyshev distance between (x1, y1) and (x2, y2).
func Separation(x1, y1, x2, y2, size int) int {
	return max(torusDelta(x1, x2, size), torusDelta(y1, y2, size))
}

func torusDelta(a, b, size int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= size
	return min(d, size-d)
}

func wrapIndex(x, y, size int) int {
	x %= size
	if x < 0 {
		x += size
	}
	y %= size
	if y < 0 {
		y += size
	}
	return y*size + x
}
