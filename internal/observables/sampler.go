// Package observables turns lattice snapshots into instantaneous observables
// and time-averaged statistics: magnetization, energy, and pairwise spin
// correlations.
package observables

import (
	"math"

	"github.com/nvandessel/orderlattice/internal/lattice"
)

// ObservableSet holds the scalars measured on one snapshot.
type ObservableSet struct {
	Energy           float64 // total energy E
	EnergyPerSite    float64 // E / N
	Magnetization    float64 // m = (1/N) sum s_i
	AbsMagnetization float64 // |m|
}

// Observe measures one snapshot.
func Observe(s lattice.Snapshot, coupling, field float64) ObservableSet {
	n := float64(s.N())
	spinSum := float64(s.SpinSum())
	energy := -coupling*float64(s.BondSum()) - field*spinSum
	m := spinSum / n
	return ObservableSet{
		Energy:           energy,
		EnergyPerSite:    energy / n,
		Magnetization:    m,
		AbsMagnetization: math.Abs(m),
	}
}

// Moments summarizes a scalar series by its mean and sample variance.
type Moments struct {
	N        int
	Mean     float64
	Variance float64 // sample variance (n-1 denominator); 0 when N < 2
	StdErr   float64 // sqrt(Variance / N)
}

// welford accumulates a running mean and variance.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

func (w welford) moments() Moments {
	out := Moments{N: w.n, Mean: w.mean}
	if w.n >= 2 {
		out.Variance = w.m2 / float64(w.n-1)
		out.StdErr = math.Sqrt(out.Variance / float64(w.n))
	}
	return out
}

// Aggregate is the time-averaged statistics of one sampling run.
type Aggregate struct {
	Size    int
	Samples int

	Magnetization    Moments
	AbsMagnetization Moments
	EnergyPerSite    Moments

	// SiteMean[i] is <s_i>.
	SiteMean []float64

	// Pairs lists the sampled pairs; the slices below are indexed alike.
	Pairs []Pair

	// TwoPoint[k] is <s_i s_j> for Pairs[k].
	TwoPoint []float64

	// Connected[k] is <s_i s_j> - <s_i><s_j> for Pairs[k].
	Connected []float64
}

// Sampler accumulates snapshots of one (T, H) point. Spin and pair sums are
// kept as integers so that results are bit-identical for a given sequence
// of snapshots.
type Sampler struct {
	size     int
	coupling float64
	field    float64
	pairs    []Pair

	siteSum []int64
	pairSum []int64

	m, absM, e welford
}

// NewSampler creates a sampler for a lattice of side size. pairs is shared
// read-only and must not be mutated afterwards.
func NewSampler(size int, coupling, field float64, pairs []Pair) *Sampler {
	return &Sampler{
		size:     size,
		coupling: coupling,
		field:    field,
		pairs:    pairs,
		siteSum:  make([]int64, size*size),
		pairSum:  make([]int64, len(pairs)),
	}
}

// Observe records one snapshot and returns its instantaneous observables.
func (s *Sampler) Observe(snap lattice.Snapshot) ObservableSet {
	obs := Observe(snap, s.coupling, s.field)
	s.m.add(obs.Magnetization)
	s.absM.add(obs.AbsMagnetization)
	s.e.add(obs.EnergyPerSite)

	spins := snap.Spins()
	for i, v := range spins {
		s.siteSum[i] += int64(v)
	}
	for k, p := range s.pairs {
		s.pairSum[k] += int64(spins[p.I]) * int64(spins[p.J])
	}
	return obs
}

// Samples returns the number of snapshots recorded so far.
func (s *Sampler) Samples() int { return s.m.n }

// Aggregate averages everything recorded so far.
func (s *Sampler) Aggregate() Aggregate {
	n := s.m.n
	agg := Aggregate{
		Size:             s.size,
		Samples:          n,
		Magnetization:    s.m.moments(),
		AbsMagnetization: s.absM.moments(),
		EnergyPerSite:    s.e.moments(),
		SiteMean:         make([]float64, len(s.siteSum)),
		Pairs:            s.pairs,
		TwoPoint:         make([]float64, len(s.pairs)),
		Connected:        make([]float64, len(s.pairs)),
	}
	if n == 0 {
		return agg
	}
	fn := float64(n)
	for i, v := range s.siteSum {
		agg.SiteMean[i] = float64(v) / fn
	}
	for k, p := range s.pairs {
		c := float64(s.pairSum[k]) / fn
		agg.TwoPoint[k] = c
		agg.Connected[k] = c - agg.SiteMean[p.I]*agg.SiteMean[p.J]
	}
	return agg
}
