package sweep

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/decompose"
	"github.com/nvandessel/orderlattice/internal/montecarlo"
	"github.com/nvandessel/orderlattice/internal/observables"
)

// Trace event kinds.
const (
	EventPointDone     = "point_done"
	EventPointFallback = "point_fallback"
)

// PointEvent is the trace record of one finished point.
type PointEvent struct {
	Run         string        `json:"run,omitempty"` // empty for RunPoint
	Event       string        `json:"event"`
	Index       int           `json:"index"`
	T           float64       `json:"t"`
	H           float64       `json:"h"`
	A           float64       `json:"a"`
	Fine        float64       `json:"fine"`
	Meso        float64       `json:"meso"`
	Coarse      float64       `json:"coarse"`
	Samples     int           `json:"samples"`
	Acceptance  float64       `json:"acceptance,omitempty"`
	MeanCluster float64       `json:"mean_cluster,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Warnings    []string      `json:"warnings,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// PointTracer receives one event per finished point. Calls come from the
// worker goroutines concurrently. *logging.SweepTrace satisfies it.
type PointTracer interface {
	TracePoint(ev PointEvent)
}

// Config is the simulation configuration shared by every point of a sweep.
type Config struct {
	Size                int                  `json:"size"`
	Coupling            float64              `json:"coupling"`
	EquilibrationSweeps int                  `json:"equilibration_sweeps"`
	SamplingSweeps      int                  `json:"sampling_sweeps"`
	SampleInterval      int                  `json:"sample_interval"`
	Rule                constants.UpdateRule `json:"rule"`
	Order               constants.SiteOrder  `json:"order"`
	Init                constants.InitPolicy `json:"init"`

	// BaseSeed seeds every point's stream together with its grid index.
	BaseSeed uint64 `json:"base_seed"`

	// Workers bounds concurrent points. 0 means GOMAXPROCS.
	Workers int `json:"workers"`

	// MaxSweeps caps equilibration plus sampling sweeps per point. 0 disables the cap.
	MaxSweeps int `json:"max_sweeps"`

	Pairs         observables.PairOptions `json:"pairs"`
	Decomposition decompose.Options       `json:"decomposition"`

	Logger *slog.Logger `json:"-"`
	Tracer PointTracer  `json:"-"`
}

// DefaultConfig returns a 16x16 Metropolis configuration.
func DefaultConfig() Config {
	return Config{
		Size:                constants.DefaultLatticeSize,
		Coupling:            constants.DefaultCoupling,
		EquilibrationSweeps: constants.DefaultEquilibrationSweeps,
		SamplingSweeps:      constants.DefaultSamplingSweeps,
		SampleInterval:      constants.DefaultSampleInterval,
		Rule:                constants.RuleMetropolis,
		Order:               constants.OrderRandom,
		Init:                constants.InitAuto,
		BaseSeed:            constants.DefaultBaseSeed,
		MaxSweeps:           constants.DefaultMaxSweeps,
		Pairs: observables.PairOptions{
			FullPairwiseMaxL: constants.DefaultFullPairwiseMaxL,
			MaxSeparation:    constants.DefaultMaxSeparation,
			LongRangeSamples: constants.DefaultLongRangeSamples,
		},
		Decomposition: decompose.Options{
			BlockSize: constants.DefaultBlockSize,
			MacroSize: constants.DefaultMacroSize,
			NoiseZ:    constants.DefaultNoiseZ,
		},
	}
}

// Geometry returns the block partition used for band attribution.
func (c Config) Geometry() decompose.Geometry {
	return decompose.Geometry{
		Size:      c.Size,
		BlockSize: c.Decomposition.BlockSize,
		MacroSize: c.Decomposition.MacroSize,
	}
}

// Params returns the engine parameters for point p.
func (c Config) Params(p Point) montecarlo.Params {
	return montecarlo.Params{
		Temperature:         p.T,
		Field:               p.H,
		Coupling:            c.Coupling,
		Size:                c.Size,
		EquilibrationSweeps: c.EquilibrationSweeps,
		SamplingSweeps:      c.SamplingSweeps,
		SampleInterval:      c.SampleInterval,
		Rule:                c.Rule,
		Order:               c.Order,
		Init:                c.Init,
	}
}

// EffectiveWorkers resolves the worker count.
func (c Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Validate rejects configurations that cannot produce a meaningful sweep.
// Every failure is a *ConfigError.
func (c Config) Validate(grid Grid) error {
	if c.Size < constants.MinLatticeSize {
		return configErr("size", c.Size, "must be >= %d", constants.MinLatticeSize)
	}
	if !(c.Coupling > 0) || math.IsInf(c.Coupling, 0) {
		return configErr("coupling", c.Coupling, "must be positive and finite")
	}
	if c.EquilibrationSweeps < 0 {
		return configErr("equilibration_sweeps", c.EquilibrationSweeps, "must be non-negative")
	}
	if c.SampleInterval < 1 {
		return configErr("sample_interval", c.SampleInterval, "must be >= 1")
	}
	if c.SamplingSweeps < c.SampleInterval {
		return configErr("sampling_sweeps", c.SamplingSweeps, "yields no snapshots at interval %d", c.SampleInterval)
	}
	if c.MaxSweeps < 0 {
		return configErr("max_sweeps", c.MaxSweeps, "must be non-negative")
	}
	if total := c.EquilibrationSweeps + c.SamplingSweeps; c.MaxSweeps > 0 && total > c.MaxSweeps {
		return configErr("max_sweeps", c.MaxSweeps, "equilibration plus sampling is %d sweeps", total)
	}
	if !c.Rule.Valid() {
		return configErr("rule", c.Rule, "valid: metropolis, wolff")
	}
	if c.Order != "" && !c.Order.Valid() {
		return configErr("order", c.Order, "valid: random, sequential")
	}
	if c.Init != "" && !c.Init.Valid() {
		return configErr("init", c.Init, "valid: auto, aligned, random")
	}
	if c.Workers < 0 {
		return configErr("workers", c.Workers, "must be non-negative")
	}
	if c.Pairs.MaxSeparation < 0 || c.Pairs.LongRangeSamples < 0 {
		return configErr("pairs", fmt.Sprintf("%+v", c.Pairs), "separation and long-range samples must be non-negative")
	}
	if err := c.Geometry().Validate(); err != nil {
		return configErr("decomposition", fmt.Sprintf("%+v", c.Decomposition), "%v", err)
	}
	if math.IsNaN(c.Decomposition.NoiseZ) || c.Decomposition.NoiseZ < 0 {
		return configErr("noise_z", c.Decomposition.NoiseZ, "must be non-negative")
	}
	if len(grid) == 0 {
		return configErr("grid", 0, "no points")
	}
	for i, p := range grid {
		if !(p.T > 0) || math.IsInf(p.T, 0) {
			return configErr(fmt.Sprintf("grid[%d].t", i), p.T, "temperature must be positive and finite")
		}
		if math.IsNaN(p.H) || math.IsInf(p.H, 0) {
			return configErr(fmt.Sprintf("grid[%d].h", i), p.H, "field must be finite")
		}
	}
	return nil
}

// warnings lists sampling shortfalls for a point that took samples snapshots.
func (c Config) warnings(samples int) []string {
	var out []string
	if minEq := montecarlo.MinEquilibrationSweeps(c.Size, c.Rule); c.EquilibrationSweeps < minEq {
		out = append(out, fmt.Sprintf("equilibration %d sweeps below minimum %d for L=%d %s",
			c.EquilibrationSweeps, minEq, c.Size, c.Rule))
	}
	if samples < 2 {
		out = append(out, fmt.Sprintf("only %d snapshot(s), variances undefined", samples))
	}
	return out
}
