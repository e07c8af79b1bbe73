// Package lattice holds the spin configuration of a square Ising lattice with
// periodic boundary conditions.
//
// Sites are addressed by a flat index i = y*L + x. Coordinates passed to
// Index and At are reduced modulo L, so every lookup wraps around the edges
// and out-of-range indices never occur.
package lattice

import (
	"fmt"
	"math/rand/v2"
)

// Init selects the starting configuration of a lattice.
type Init int

const (
	// InitAligned sets every spin to +1.
	InitAligned Init = iota

	// InitRandom draws every spin independently, +1 or -1 with probability 1/2.
	InitRandom
)

// String returns the init mode name.
func (i Init) String() string {
	switch i {
	case InitAligned:
		return "aligned"
	case InitRandom:
		return "random"
	}
	return fmt.Sprintf("Init(%d)", int(i))
}

// Lattice is an L x L grid of +1/-1 spins with periodic boundaries.
// It is not safe for concurrent use; one update engine owns it for a run.
type Lattice struct {
	size      int
	spins     []int8
	neighbors [][4]int
}

// New creates a lattice of side size initialized with init.
// rng is only consulted for InitRandom and may be nil otherwise.
// Callers validate size >= 2 before constructing.
func New(size int, init Init, rng *rand.Rand) *Lattice {
	n := size * size
	l := &Lattice{
		size:      size,
		spins:     make([]int8, n),
		neighbors: make([][4]int, n),
	}
	for i := 0; i < n; i++ {
		x, y := i%size, i/size
		l.neighbors[i] = [4]int{
			l.Index(x+1, y),
			l.Index(x-1, y),
			l.Index(x, y+1),
			l.Index(x, y-1),
		}
	}
	l.Reset(init, rng)
	return l
}

// Reset reinitializes every spin in place.
func (l *Lattice) Reset(init Init, rng *rand.Rand) {
	for i := range l.spins {
		if init == InitRandom && rng.IntN(2) == 0 {
			l.spins[i] = -1
		} else {
			l.spins[i] = 1
		}
	}
}

// Size returns the side length L.
func (l *Lattice) Size() int { return l.size }

// N returns the number of sites L*L.
func (l *Lattice) N() int { return len(l.spins) }

// Index maps (x, y) to a flat site index, wrapping both coordinates.
func (l *Lattice) Index(x, y int) int {
	return wrap(y, l.size)*l.size + wrap(x, l.size)
}

// Coords maps a flat site index back to (x, y).
func (l *Lattice) Coords(i int) (x, y int) {
	i = wrap(i, len(l.spins))
	return i % l.size, i / l.size
}

// Spin returns the spin at flat index i.
func (l *Lattice) Spin(i int) int8 {
	return l.spins[wrap(i, len(l.spins))]
}

// At returns the spin at (x, y), wrapping both coordinates.
func (l *Lattice) At(x, y int) int8 {
	return l.spins[l.Index(x, y)]
}

// Neighbors returns the four periodic neighbours of site i: right, left, down, up.
func (l *Lattice) Neighbors(i int) [4]int {
	return l.neighbors[wrap(i, len(l.spins))]
}

// NeighborSum returns the sum of the four neighbouring spins of site i.
func (l *Lattice) NeighborSum(i int) int {
	nb := l.neighbors[wrap(i, len(l.spins))]
	return int(l.spins[nb[0]]) + int(l.spins[nb[1]]) + int(l.spins[nb[2]]) + int(l.spins[nb[3]])
}

// Flip negates the spin at site i.
func (l *Lattice) Flip(i int) {
	i = wrap(i, len(l.spins))
	l.spins[i] = -l.spins[i]
}

// FlipAll negates every spin in sites as one update. Sites must be distinct.
func (l *Lattice) FlipAll(sites []int) {
	for _, i := range sites {
		l.Flip(i)
	}
}

// Magnetization returns m = (1/N) * sum of spins.
func (l *Lattice) Magnetization() float64 {
	return float64(l.SpinSum()) / float64(len(l.spins))
}

// SpinSum returns the sum of all spins.
func (l *Lattice) SpinSum() int {
	sum := 0
	for _, s := range l.spins {
		sum += int(s)
	}
	return sum
}

// BondSum returns the sum of s_i*s_j over nearest-neighbour bonds,
// each bond counted once.
func (l *Lattice) BondSum() int {
	sum := 0
	for i, s := range l.spins {
		nb := l.neighbors[i]
		// right and down cover every bond exactly once
		sum += int(s) * (int(l.spins[nb[0]]) + int(l.spins[nb[2]]))
	}
	return sum
}

// Energy returns E = -J * sum_<ij> s_i s_j - H * sum_i s_i.
func (l *Lattice) Energy(coupling, field float64) float64 {
	return -coupling*float64(l.BondSum()) - field*float64(l.SpinSum())
}

// Valid reports whether every spin is +1 or -1.
func (l *Lattice) Valid() bool {
	for _, s := range l.spins {
		if s != 1 && s != -1 {
			return false
		}
	}
	return true
}

// Snapshot returns an immutable copy of the current configuration.
func (l *Lattice) Snapshot() Snapshot {
	spins := make([]int8, len(l.spins))
	copy(spins, l.spins)
	return Snapshot{size: l.size, spins: spins}
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
