package montecarlo

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/lattice"
)

// Stats counts the work an engine has done since construction.
type Stats struct {
	Sweeps       int   // completed sweeps (equilibration + sampling)
	Attempts     int64 // Metropolis flip attempts
	Accepted     int64 // Metropolis flips accepted
	Clusters     int64 // Wolff clusters grown
	ClusterSites int64 // sites visited by grown Wolff clusters
	Rejected     int64 // Wolff cluster flips rejected by the field
}

// AcceptanceRate returns accepted / attempted Metropolis flips.
func (s Stats) AcceptanceRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Attempts)
}

// MeanClusterSize returns the mean Wolff cluster size.
func (s Stats) MeanClusterSize() float64 {
	if s.Clusters == 0 {
		return 0
	}
	return float64(s.ClusterSites) / float64(s.Clusters)
}

// Engine evolves one lattice with one random stream. The engine is not safe
// for concurrent use: each flip depends on the current configuration.
type Engine struct {
	params Params
	lat    *lattice.Lattice
	rng    *rand.Rand

	// accept[s][k] is the acceptance probability for flipping spin s
	// (0 for -1, 1 for +1) with neighbour sum 2k-4.
	accept [2][5]float64
	pAdd   float64

	// Wolff scratch space, reused across steps.
	stamp   []uint32
	gen     uint32
	stack   []int
	cluster []int

	stats Stats
}

// NewEngine builds an engine and a fresh lattice for params. rng is owned by
// the engine from here on.
func NewEngine(params Params, rng *rand.Rand) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation parameters: %w", err)
	}
	if params.Order == "" {
		params.Order = constants.OrderRandom
	}
	if params.Init == "" {
		params.Init = constants.InitAuto
	}

	e := &Engine{
		params: params,
		rng:    rng,
		lat:    lattice.New(params.Size, params.LatticeInit(), rng),
		pAdd:   BondProbability(params.Coupling, params.Temperature),
	}
	for si, s := range []float64{-1, 1} {
		for k := 0; k < 5; k++ {
			nb := float64(2*k - 4)
			dE := 2 * s * (params.Coupling*nb + params.Field)
			e.accept[si][k] = AcceptanceProbability(dE, params.Temperature)
		}
	}
	if params.Rule == constants.RuleWolff {
		e.stamp = make([]uint32, e.lat.N())
		e.stack = make([]int, 0, e.lat.N())
		e.cluster = make([]int, 0, e.lat.N())
	}
	return e, nil
}

// Params returns the parameters the engine was built with.
func (e *Engine) Params() Params { return e.params }

// Lattice returns the lattice owned by the engine. Callers must not mutate it.
func (e *Engine) Lattice() *lattice.Lattice { return e.lat }

// Stats returns the work counters.
func (e *Engine) Stats() Stats { return e.stats }

// Sweep performs one sweep with the configured rule.
func (e *Engine) Sweep() {
	if e.params.Rule == constants.RuleWolff {
		e.wolffSweep()
	} else {
		e.metropolisSweep()
	}
	e.stats.Sweeps++
}

// Equilibrate runs the configured number of equilibration sweeps and discards them.
func (e *Engine) Equilibrate(ctx context.Context) error {
	for k := 0; k < e.params.EquilibrationSweeps; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Sweep()
	}
	return nil
}

// Sample runs the configured sampling sweeps and hands a snapshot to visit
// after every SampleInterval-th sweep.
func (e *Engine) Sample(ctx context.Context, visit func(lattice.Snapshot)) error {
	for k := 1; k <= e.params.SamplingSweeps; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Sweep()
		if k%e.params.SampleInterval == 0 {
			visit(e.lat.Snapshot())
		}
	}
	return nil
}

// metropolisSweep attempts N single-spin flips.
func (e *Engine) metropolisSweep() {
	n := e.lat.N()
	sequential := e.params.Order == constants.OrderSequential
	for k := 0; k < n; k++ {
		i := k
		if !sequential {
			i = e.rng.IntN(n)
		}
		e.stats.Attempts++
		s := e.lat.Spin(i)
		si := 0
		if s > 0 {
			si = 1
		}
		p := e.accept[si][(e.lat.NeighborSum(i)+4)/2]
		if p >= 1 || (p > 0 && e.rng.Float64() < p) {
			e.lat.Flip(i)
			e.stats.Accepted++
		}
	}
}

// wolffSweep grows clusters until their cumulative size reaches N.
func (e *Engine) wolffSweep() {
	n := e.lat.N()
	visited := 0
	for visited < n {
		size, _ := e.WolffStep()
		visited += size
	}
}

// WolffStep grows one cluster from a random seed and flips it atomically.
// It returns the cluster size and whether the flip was applied; with H != 0
// the flip is accepted with the field Boltzmann factor of the whole cluster.
func (e *Engine) WolffStep() (int, bool) {
	if e.stamp == nil {
		n := e.lat.N()
		e.stamp = make([]uint32, n)
		e.stack = make([]int, 0, n)
		e.cluster = make([]int, 0, n)
	}
	e.gen++
	if e.gen == 0 {
		clear(e.stamp)
		e.gen = 1
	}

	seed := e.rng.IntN(e.lat.N())
	s := e.lat.Spin(seed)
	e.cluster = e.cluster[:0]
	e.stack = append(e.stack[:0], seed)
	e.stamp[seed] = e.gen

	for len(e.stack) > 0 {
		i := e.stack[len(e.stack)-1]
		e.stack = e.stack[:len(e.stack)-1]
		e.cluster = append(e.cluster, i)
		for _, j := range e.lat.Neighbors(i) {
			if e.stamp[j] == e.gen || e.lat.Spin(j) != s {
				continue
			}
			if e.rng.Float64() < e.pAdd {
				e.stamp[j] = e.gen
				e.stack = append(e.stack, j)
			}
		}
	}

	size := len(e.cluster)
	e.stats.Clusters++
	e.stats.ClusterSites += int64(size)

	if e.params.Field != 0 {
		dE := 2 * e.params.Field * float64(s) * float64(size)
		p := AcceptanceProbability(dE, e.params.Temperature)
		if p < 1 && !(p > 0 && e.rng.Float64() < p) {
			e.stats.Rejected++
			return size, false
		}
	}
	e.lat.FlipAll(e.cluster)
	return size, true
}
