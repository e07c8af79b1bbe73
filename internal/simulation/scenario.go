package simulation

import (
	"fmt"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
)

// Scenario defines a complete simulation experiment. Zero values take the
// harness defaults below.
type Scenario struct {
	Name         string
	Size         int
	Rule         constants.UpdateRule
	Temperatures []float64
	Fields       []float64 // default [0]

	EquilibrationSweeps int
	SamplingSweeps      int
	Workers             int

	// Seeds lists one base seed per run. Empty means a single run with
	// constants.DefaultBaseSeed.
	Seeds []uint64

	// Configure, when non-nil, adjusts the sweep configuration of each run
	// after defaults are applied.
	Configure func(runIndex int, cfg *sweep.Config)

	// BeforeRun, when non-nil, is called before each run executes.
	BeforeRun func(runIndex int, s *store.SQLiteResultStore)
}

// Harness defaults: long enough for L=8 to equilibrate at every grid point.
const (
	DefaultSize                = 8
	DefaultEquilibrationSweeps = 400
	DefaultSamplingSweeps      = 2000
)

// Config builds the sweep configuration for run runIndex.
func (s Scenario) Config(runIndex int) sweep.Config {
	cfg := sweep.DefaultConfig()
	cfg.Size = orDefault(s.Size, DefaultSize)
	cfg.EquilibrationSweeps = orDefault(s.EquilibrationSweeps, DefaultEquilibrationSweeps)
	cfg.SamplingSweeps = orDefault(s.SamplingSweeps, DefaultSamplingSweeps)
	cfg.Workers = s.Workers
	if s.Rule != "" {
		cfg.Rule = s.Rule
	}
	if runIndex < len(s.Seeds) {
		cfg.BaseSeed = s.Seeds[runIndex]
	}
	if s.Configure != nil {
		s.Configure(runIndex, &cfg)
	}
	return cfg
}

// Grid builds the field-major grid of the scenario.
func (s Scenario) Grid() sweep.Grid {
	fields := s.Fields
	if len(fields) == 0 {
		fields = []float64{0}
	}
	return sweep.CartesianGrid(s.Temperatures, fields)
}

// Runs returns how many sweeps the scenario performs.
func (s Scenario) Runs() int {
	return max(len(s.Seeds), 1)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// RunResult captures one sweep as read back from the store.
type RunResult struct {
	Index  int
	Result sweep.Result
}

// SimulationResult captures all runs and the final store state.
type SimulationResult struct {
	Name  string
	Runs  []RunResult
	Store *store.SQLiteResultStore
}

// Rows returns the rows of the first run.
func (r SimulationResult) Rows() []sweep.Row {
	if len(r.Runs) == 0 {
		return nil
	}
	return r.Runs[0].Result.Rows
}

// PointKey builds the canonical map key for a grid point.
func PointKey(t, h float64) string {
	return fmt.Sprintf("T=%g,H=%g", t, h)
}
