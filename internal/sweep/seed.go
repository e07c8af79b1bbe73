package sweep

const golden = 0x9e3779b97f4a7c15

// splitmix64 is the SplitMix64 output function applied to state x.
func splitmix64(x uint64) uint64 {
	z := x + golden
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// SeedFor derives the two PCG seed words of the point at grid index from
// the run's base seed. Streams depend only on (base, index), never on
// scheduling.
func SeedFor(base uint64, index int) (uint64, uint64) {
	state := base + uint64(index)*golden
	s1 := splitmix64(state)
	s2 := splitmix64(state ^ s1)
	return s1, s2
}
