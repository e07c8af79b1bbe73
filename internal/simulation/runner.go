package simulation

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
)

// Runner orchestrates multi-run sweep experiments against a real result store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteResultStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteResultStore(filepath.Join(tmpDir, store.DirName, store.DBFileName))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Store returns the runner's result store.
func (r *Runner) Store() *store.SQLiteResultStore {
	return r.store
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	grid := scenario.Grid()
	runs := make([]RunResult, scenario.Runs())
	for i := range runs {
		if scenario.BeforeRun != nil {
			scenario.BeforeRun(i, r.store)
		}
		runs[i] = r.runOnce(ctx, i, grid, scenario.Config(i))
	}

	return SimulationResult{
		Name:  scenario.Name,
		Runs:  runs,
		Store: r.store,
	}
}

// runOnce sweeps the grid, persists the run and reads it back.
func (r *Runner) runOnce(ctx context.Context, index int, grid sweep.Grid, cfg sweep.Config) RunResult {
	r.t.Helper()

	res, err := sweep.RunSweep(ctx, grid, cfg)
	if err != nil {
		r.t.Fatalf("run %d: RunSweep: %v", index, err)
	}
	if err := r.store.SaveRun(ctx, res); err != nil {
		r.t.Fatalf("run %d: SaveRun: %v", index, err)
	}

	stored, err := r.store.GetRun(ctx, res.ID)
	if err != nil {
		r.t.Fatalf("run %d: GetRun(%s): %v", index, res.ID, err)
	}
	if !reflect.DeepEqual(normalize(stored.Rows), normalize(res.Rows)) {
		r.t.Fatalf("run %d: stored rows differ from computed rows", index)
	}
	return RunResult{Index: index, Result: *stored}
}

// normalize maps empty warning lists to nil so stored and computed rows compare equal.
func normalize(rows []sweep.Row) []sweep.Row {
	out := make([]sweep.Row, len(rows))
	for i, row := range rows {
		if len(row.Warnings) == 0 {
			row.Warnings = nil
		}
		out[i] = row
	}
	return out
}

// FormatRunDebug returns a debug table for a run.
func FormatRunDebug(rr RunResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %d (%s): L=%d %s seed=%d\n", rr.Index, rr.Result.ID,
		rr.Result.Config.Size, rr.Result.Config.Rule, rr.Result.Config.BaseSeed)
	for _, row := range rr.Result.Rows {
		fmt.Fprintf(&sb, "  T=%.3f H=%.3f A=%.4f fine=%.3f meso=%.3f coarse=%.3f |m|=%.3f %s\n",
			row.T, row.H, row.A, row.Fine, row.Meso, row.Coarse, row.AbsM, row.Status)
	}
	return sb.String()
}
