package lattice

// Snapshot is a read-only capture of a lattice configuration at one sampling
// instant. It shares nothing with the lattice it was taken from.
type Snapshot struct {
	size  int
	spins []int8
}

// Size returns the side length L of the captured lattice.
func (s Snapshot) Size() int { return s.size }

// N returns the number of captured sites.
func (s Snapshot) N() int { return len(s.spins) }

// Spin returns the captured spin at flat index i.
func (s Snapshot) Spin(i int) int8 { return s.spins[i] }

// Spins returns a copy of the captured spins.
func (s Snapshot) Spins() []int8 {
	out := make([]int8, len(s.spins))
	copy(out, s.spins)
	return out
}

// SpinSum returns the sum of the captured spins.
func (s Snapshot) SpinSum() int {
	sum := 0
	for _, v := range s.spins {
		sum += int(v)
	}
	return sum
}

// BondSum returns the sum of nearest-neighbour products, each bond once.
func (s Snapshot) BondSum() int {
	l := s.size
	sum := 0
	for i, v := range s.spins {
		x, y := i%l, i/l
		right := y*l + (x+1)%l
		down := ((y+1)%l)*l + x
		sum += int(v) * (int(s.spins[right]) + int(s.spins[down]))
	}
	return sum
}
