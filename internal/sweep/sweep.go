// Package sweep runs the lattice simulation over a grid of (T, H) points and
// reduces each point to an order/resistance row with its scale decomposition.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/decompose"
	"github.com/nvandessel/orderlattice/internal/lattice"
	"github.com/nvandessel/orderlattice/internal/montecarlo"
	"github.com/nvandessel/orderlattice/internal/observables"
)

// Result is a completed sweep. Rows follow the order of Grid.
type Result struct {
	ID         string    `json:"id"`
	Config     Config    `json:"config"`
	Grid       Grid      `json:"grid"`
	Rows       []Row     `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Fallbacks returns the number of rows with StatusFallback.
func (r Result) Fallbacks() int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == StatusFallback {
			n++
		}
	}
	return n
}

// PointResult is a single point's row together with the material it was
// derived from.
type PointResult struct {
	Row       Row
	Aggregate observables.Aggregate
	Tree      decompose.Tree
	Stats     montecarlo.Stats
}

// pointHook runs at the start of every point. Tests use it to inject faults.
var pointHook func(index int, p Point)

// RunSweep simulates every point of grid and returns one row per point in
// grid order. Configuration errors are returned before any work starts and
// match ErrInvalidConfig. A failing point yields a fallback row and never
// aborts the sweep; cancelling ctx does.
func RunSweep(ctx context.Context, grid Grid, cfg Config) (Result, error) {
	if err := cfg.Validate(grid); err != nil {
		return Result{}, err
	}
	logger := cfg.logger()

	res := Result{
		ID:        uuid.NewString(),
		Config:    cfg,
		Grid:      append(Grid(nil), grid...),
		StartedAt: time.Now().UTC(),
	}
	workers := cfg.EffectiveWorkers()
	logger.Info("sweep started", "run", res.ID, "points", len(grid), "size", cfg.Size,
		"rule", cfg.Rule, "workers", workers, "seed", cfg.BaseSeed)

	rows := make([]Row, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range grid {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			pr, err := runPoint(gctx, cfg, res.ID, i, p)
			if err != nil {
				return err
			}
			rows[i] = pr.Row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("sweep %s aborted: %w", res.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("sweep %s aborted: %w", res.ID, err)
	}

	res.Rows = rows
	res.FinishedAt = time.Now().UTC()
	logger.Info("sweep finished", "run", res.ID, "points", len(rows),
		"fallbacks", res.Fallbacks(), "elapsed", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// RunPoint simulates a single point as if it sat at index of a sweep grid,
// so its row is identical to the one RunSweep would produce there.
func RunPoint(ctx context.Context, p Point, index int, cfg Config) (PointResult, error) {
	if err := cfg.Validate(Grid{p}); err != nil {
		return PointResult{}, err
	}
	return runPoint(ctx, cfg, "", index, p)
}

// runPoint never returns an error other than a context error; every other
// failure becomes a fallback row.
func runPoint(ctx context.Context, cfg Config, runID string, index int, p Point) (pr PointResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			pr = PointResult{Row: FallbackRow(cfg, p, fmt.Errorf("panic: %v", r))}
			err = nil
		}
		if err == nil {
			cfg.trace(runID, index, p, pr.Row, time.Since(start))
		}
	}()

	if pointHook != nil {
		pointHook(index, p)
	}

	pr, err = simulate(ctx, cfg, index, p)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return PointResult{}, err
		}
		return PointResult{Row: FallbackRow(cfg, p, err)}, nil
	}
	if !pr.Row.Finite() {
		return PointResult{Row: FallbackRow(cfg, p, errors.New("non-finite result"))}, nil
	}
	return pr, nil
}

func simulate(ctx context.Context, cfg Config, index int, p Point) (PointResult, error) {
	rng := rand.New(rand.NewPCG(SeedFor(cfg.BaseSeed, index)))
	pairs := observables.SelectPairs(cfg.Size, cfg.Pairs, rng)

	eng, err := montecarlo.NewEngine(cfg.Params(p), rng)
	if err != nil {
		return PointResult{}, err
	}
	if err := eng.Equilibrate(ctx); err != nil {
		return PointResult{}, err
	}
	sampler := observables.NewSampler(cfg.Size, cfg.Coupling, p.H, pairs)
	if err := eng.Sample(ctx, func(s lattice.Snapshot) { sampler.Observe(s) }); err != nil {
		return PointResult{}, err
	}

	agg := sampler.Aggregate()
	layers, tree := decompose.Decompose(agg, cfg.Decomposition)
	stats := eng.Stats()

	row := Row{
		T:         p.T,
		H:         p.H,
		AbsM:      agg.AbsMagnetization.Mean,
		AbsMErr:   agg.AbsMagnetization.StdErr,
		Energy:    agg.EnergyPerSite.Mean,
		EnergyErr: agg.EnergyPerSite.StdErr,
		Samples:   agg.Samples,
		Status:    StatusOK,
		Warnings:  cfg.warnings(agg.Samples),
	}
	row.setLayers(layers)
	if cfg.Rule == constants.RuleWolff {
		row.MeanCluster = stats.MeanClusterSize()
	} else {
		row.Acceptance = stats.AcceptanceRate()
	}
	return PointResult{Row: row, Aggregate: agg, Tree: tree, Stats: stats}, nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (c Config) trace(runID string, index int, p Point, row Row, elapsed time.Duration) {
	event := EventPointDone
	if row.Status == StatusFallback {
		event = EventPointFallback
		c.logger().Warn("point fell back", "index", index, "point", p.String(), "error", row.Error)
	} else {
		c.logger().Debug("point done", "index", index, "point", p.String(), "a", row.A,
			"samples", row.Samples, "elapsed", elapsed)
	}
	if c.Tracer == nil {
		return
	}
	c.Tracer.TracePoint(PointEvent{
		Run:         runID,
		Event:       event,
		Index:       index,
		T:           p.T,
		H:           p.H,
		A:           row.A,
		Fine:        row.Fine,
		Meso:        row.Meso,
		Coarse:      row.Coarse,
		Samples:     row.Samples,
		Acceptance:  row.Acceptance,
		MeanCluster: row.MeanCluster,
		Elapsed:     elapsed,
		Warnings:    row.Warnings,
		Error:       row.Error,
	})
}
