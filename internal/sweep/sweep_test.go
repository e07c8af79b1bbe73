package sweep

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/nvandessel/orderlattice/internal/constants"
)

// testConfig returns a small but well-sampled 8x8 configuration.
func testConfig(rule constants.UpdateRule) Config {
	cfg := DefaultConfig()
	cfg.Size = 8
	cfg.Rule = rule
	cfg.EquilibrationSweeps = 400
	cfg.SamplingSweeps = 2000
	cfg.SampleInterval = 2
	cfg.Workers = 4
	return cfg
}

func runGrid(t *testing.T, grid Grid, cfg Config) []Row {
	t.Helper()
	res, err := RunSweep(context.Background(), grid, cfg)
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}
	if len(res.Rows) != len(grid) {
		t.Fatalf("rows = %d, want %d", len(res.Rows), len(grid))
	}
	return res.Rows
}

func setPointHook(t *testing.T, hook func(int, Point)) {
	t.Helper()
	pointHook = hook
	t.Cleanup(func() { pointHook = nil })
}

func TestCartesianGrid_FieldMajor(t *testing.T) {
	grid := CartesianGrid([]float64{1, 2, 3}, []float64{0, 0.02})
	want := Grid{{1, 0}, {2, 0}, {3, 0}, {1, 0.02}, {2, 0.02}, {3, 0.02}}
	if !reflect.DeepEqual(grid, want) {
		t.Errorf("CartesianGrid() = %v, want %v", grid, want)
	}
	if got := CartesianGrid(nil, []float64{0}); len(got) != 0 {
		t.Errorf("CartesianGrid(nil, ...) = %v, want empty", got)
	}
}

func TestLinspace(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		stop  float64
		steps int
		want  []float64
	}{
		{"five", 1, 3, 5, []float64{1, 1.5, 2, 2.5, 3}},
		{"one", 2, 9, 1, []float64{2}},
		{"zero", 1, 2, 0, nil},
		{"descending", 3, 1, 3, []float64{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Linspace(tt.start, tt.stop, tt.steps)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Linspace() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeedFor(t *testing.T) {
	a1, a2 := SeedFor(42, 0)
	b1, b2 := SeedFor(42, 0)
	if a1 != b1 || a2 != b2 {
		t.Error("SeedFor is not deterministic")
	}
	seen := make(map[uint64]int)
	for i := 0; i < 1000; i++ {
		s1, _ := SeedFor(42, i)
		if j, ok := seen[s1]; ok {
			t.Fatalf("SeedFor(42, %d) collides with index %d", i, j)
		}
		seen[s1] = i
	}
	if c1, _ := SeedFor(43, 0); c1 == a1 {
		t.Error("different base seeds produced the same stream")
	}
}

func TestConfig_Validate(t *testing.T) {
	grid := Grid{{T: 2, H: 0}}
	tests := []struct {
		name   string
		mutate func(*Config)
		grid   Grid
		field  string
	}{
		{"small lattice", func(c *Config) { c.Size = 1 }, grid, "size"},
		{"zero coupling", func(c *Config) { c.Coupling = 0 }, grid, "coupling"},
		{"negative equilibration", func(c *Config) { c.EquilibrationSweeps = -1 }, grid, "equilibration_sweeps"},
		{"zero interval", func(c *Config) { c.SampleInterval = 0 }, grid, "sample_interval"},
		{"no snapshots", func(c *Config) { c.SamplingSweeps = 1 }, grid, "sampling_sweeps"},
		{"over cap", func(c *Config) { c.MaxSweeps = 100 }, grid, "max_sweeps"},
		{"bad rule", func(c *Config) { c.Rule = "glauber" }, grid, "rule"},
		{"bad order", func(c *Config) { c.Order = "spiral" }, grid, "order"},
		{"bad init", func(c *Config) { c.Init = "warm" }, grid, "init"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, grid, "workers"},
		{"bad blocks", func(c *Config) { c.Decomposition.MacroSize = 6 }, grid, "decomposition"},
		{"negative noise", func(c *Config) { c.Decomposition.NoiseZ = -1 }, grid, "noise_z"},
		{"empty grid", func(c *Config) {}, Grid{}, "grid"},
		{"zero temperature", func(c *Config) {}, Grid{{T: 1}, {T: 0}}, "grid[1].t"},
		{"negative temperature", func(c *Config) {}, Grid{{T: -1}}, "grid[0].t"},
		{"infinite temperature", func(c *Config) {}, Grid{{T: math.Inf(1)}}, "grid[0].t"},
		{"nan field", func(c *Config) {}, Grid{{T: 1, H: math.NaN()}}, "grid[0].h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.grid)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error %T is not *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}

	if err := DefaultConfig().Validate(grid); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestRunSweep_ConfigErrorRunsNothing(t *testing.T) {
	calls := 0
	setPointHook(t, func(int, Point) { calls++ })

	cfg := testConfig(constants.RuleMetropolis)
	_, err := RunSweep(context.Background(), Grid{{T: 1}, {T: -1}}, cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("RunSweep() error = %v, want ErrInvalidConfig", err)
	}
	if calls != 0 {
		t.Errorf("%d points ran before validation failed", calls)
	}
}

func TestRunSweep_RowInvariants(t *testing.T) {
	grid := CartesianGrid([]float64{1.5, 2.27, 3, 5}, constants.DefaultFields)
	for _, rule := range []constants.UpdateRule{constants.RuleMetropolis, constants.RuleWolff} {
		t.Run(rule.String(), func(t *testing.T) {
			rows := runGrid(t, grid, testConfig(rule))
			for i, row := range rows {
				if row.T != grid[i].T || row.H != grid[i].H {
					t.Errorf("row %d is (%v, %v), want %v", i, row.T, row.H, grid[i])
				}
				if row.Status != StatusOK {
					t.Errorf("row %d status = %s (%s)", i, row.Status, row.Error)
				}
				if row.A < 0 || row.A > 1 {
					t.Errorf("row %d A = %v out of [0,1]", i, row.A)
				}
				if row.A+row.R != 1 {
					t.Errorf("row %d A+R = %v", i, row.A+row.R)
				}
				if row.Fine < 0 || row.Meso < 0 || row.Coarse < 0 {
					t.Errorf("row %d has negative band: %+v", i, row)
				}
				if sum := row.Fine + row.Meso + row.Coarse; sum > row.TCMax+1e-9 {
					t.Errorf("row %d band sum %v > TCMax %v", i, sum, row.TCMax)
				}
				if row.TCMax != 63 {
					t.Errorf("row %d TCMax = %v, want 63", i, row.TCMax)
				}
				if row.Samples != 1000 {
					t.Errorf("row %d samples = %d, want 1000", i, row.Samples)
				}
				if len(row.Warnings) != 0 {
					t.Errorf("row %d warnings = %v", i, row.Warnings)
				}
			}
		})
	}
}

func TestRunSweep_DeterministicAcrossWorkers(t *testing.T) {
	grid := CartesianGrid([]float64{1.8, 2.3, 3.2}, []float64{0, 0.05})
	cfg := testConfig(constants.RuleMetropolis)
	cfg.SamplingSweeps = 600

	cfg.Workers = 1
	serial := runGrid(t, grid, cfg)
	cfg.Workers = 6
	parallel := runGrid(t, grid, cfg)
	again := runGrid(t, grid, cfg)

	if !reflect.DeepEqual(serial, parallel) {
		t.Error("rows differ between 1 and 6 workers")
	}
	if !reflect.DeepEqual(parallel, again) {
		t.Error("rows differ between identical runs")
	}

	cfg.BaseSeed++
	other := runGrid(t, grid, cfg)
	if reflect.DeepEqual(other, serial) {
		t.Error("changing the base seed did not change any row")
	}
}

func TestRunSweep_ExtremeTemperatures(t *testing.T) {
	for _, rule := range []constants.UpdateRule{constants.RuleMetropolis, constants.RuleWolff} {
		t.Run(rule.String(), func(t *testing.T) {
			grid := Grid{{T: 0.01, H: 0}, {T: 0.01, H: 0.02}, {T: 0.01, H: -0.5}, {T: 10, H: 0}}
			rows := runGrid(t, grid, testConfig(rule))
			for _, row := range rows[:3] {
				if row.A < 0.99 {
					t.Errorf("A(T=0.01, H=%v) = %v, want ~1", row.H, row.A)
				}
			}
			if rows[3].A >= 0.1 {
				t.Errorf("A(T=10, H=0) = %v, want < 0.1", rows[3].A)
			}
		})
	}
}

func TestRunSweep_DropAcrossCriticalTemperature(t *testing.T) {
	temps := []float64{1.8, 2.6, 3.0, 3.5, 4.0}
	rows := runGrid(t, CartesianGrid(temps, []float64{0}), testConfig(constants.RuleWolff))

	if drop := rows[0].A - rows[1].A; drop < 0.3 {
		t.Errorf("A(1.8) - A(2.6) = %v, want a sharp drop", drop)
	}
	for i := 2; i < len(rows); i++ {
		if rows[i].A > rows[i-1].A+0.03 {
			t.Errorf("A(%v) = %v exceeds A(%v) = %v", rows[i].T, rows[i].A, rows[i-1].T, rows[i-1].A)
		}
	}
}

func TestRunSweep_FieldDoesNotLowerOrder(t *testing.T) {
	temps := []float64{2.0, 2.4, 3.0}
	rows := runGrid(t, CartesianGrid(temps, []float64{0, 0.1}), testConfig(constants.RuleMetropolis))
	for i := range temps {
		zero, field := rows[i], rows[i+len(temps)]
		if field.A < zero.A-0.02 {
			t.Errorf("T=%v: A(H=0.1) = %v < A(H=0) = %v", zero.T, field.A, zero.A)
		}
	}
}

func TestRunSweep_RulesAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running equilibrium comparison")
	}
	grid := Grid{{T: 1.8}, {T: 3.0}, {T: 3.0, H: 0.1}}
	cfg := testConfig(constants.RuleMetropolis)
	cfg.SamplingSweeps = 4000
	metropolis := runGrid(t, grid, cfg)
	cfg.Rule = constants.RuleWolff
	wolff := runGrid(t, grid, cfg)

	for i := range grid {
		if d := math.Abs(metropolis[i].A - wolff[i].A); d > 0.05 {
			t.Errorf("%v: metropolis A=%v, wolff A=%v, diff %v", grid[i], metropolis[i].A, wolff[i].A, d)
		}
	}
}

func TestRunSweep_PanicFallback(t *testing.T) {
	setPointHook(t, func(i int, p Point) {
		if i == 1 || i == 2 {
			panic("injected fault")
		}
	})

	grid := Grid{{T: 1.5}, {T: 1.5, H: 0.02}, {T: 3}, {T: 3}}
	rows := runGrid(t, grid, testConfig(constants.RuleMetropolis))

	if rows[0].Status != StatusOK || rows[3].Status != StatusOK {
		t.Errorf("healthy points status = %s, %s", rows[0].Status, rows[3].Status)
	}

	cold := rows[1]
	if cold.Status != StatusFallback {
		t.Fatalf("cold status = %s, want fallback", cold.Status)
	}
	if cold.A != 1 || cold.R != 0 || cold.TC != 63 {
		t.Errorf("cold fallback A, R, TC = %v, %v, %v, want 1, 0, 63", cold.A, cold.R, cold.TC)
	}
	if cold.H != 0.02 {
		t.Errorf("cold fallback H = %v, want 0.02", cold.H)
	}
	if !strings.Contains(cold.Error, "injected fault") {
		t.Errorf("cold fallback error = %q", cold.Error)
	}

	hot := rows[2]
	if hot.Status != StatusFallback || hot.A != 0 || hot.R != 1 {
		t.Errorf("hot fallback = %+v, want A=0 R=1", hot)
	}
	if hot.Fine != 0 || hot.Meso != 0 || hot.Coarse != 0 {
		t.Errorf("hot fallback bands = %v/%v/%v, want zero", hot.Fine, hot.Meso, hot.Coarse)
	}
}

func TestRunSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunSweep(ctx, Grid{{T: 2}, {T: 3}}, testConfig(constants.RuleMetropolis))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunSweep() error = %v, want context.Canceled", err)
	}
}

func TestRunSweep_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setPointHook(t, func(i int, p Point) {
		if i == 0 {
			cancel()
		}
	})
	cfg := testConfig(constants.RuleMetropolis)
	cfg.Workers = 1
	_, err := RunSweep(ctx, Grid{{T: 2}, {T: 3}, {T: 4}}, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunSweep() error = %v, want context.Canceled", err)
	}
}

func TestRunSweep_SamplingWarnings(t *testing.T) {
	cfg := testConfig(constants.RuleMetropolis)
	cfg.EquilibrationSweeps = 10
	cfg.SamplingSweeps = 2
	rows := runGrid(t, Grid{{T: 2}}, cfg)

	row := rows[0]
	if row.Status != StatusOK {
		t.Fatalf("status = %s, want ok", row.Status)
	}
	if len(row.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", row.Warnings)
	}
	if !strings.Contains(row.Warnings[0], "below minimum 160") {
		t.Errorf("warning[0] = %q", row.Warnings[0])
	}
	if !strings.Contains(row.Warnings[1], "1 snapshot") {
		t.Errorf("warning[1] = %q", row.Warnings[1])
	}
}

type recordingTracer struct {
	mu     sync.Mutex
	events []PointEvent
}

func (r *recordingTracer) TracePoint(ev PointEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestRunSweep_TracesEveryPoint(t *testing.T) {
	setPointHook(t, func(i int, p Point) {
		if i == 2 {
			panic("boom")
		}
	})
	tracer := &recordingTracer{}
	cfg := testConfig(constants.RuleWolff)
	cfg.SamplingSweeps = 200
	cfg.Tracer = tracer
	res, err := RunSweep(context.Background(), Grid{{T: 1}, {T: 2}, {T: 3}, {T: 4}}, cfg)
	if err != nil {
		t.Fatalf("RunSweep() error = %v", err)
	}

	if len(tracer.events) != 4 {
		t.Fatalf("events = %d, want 4", len(tracer.events))
	}
	counts := map[string]int{}
	for _, e := range tracer.events {
		counts[e.Event]++
		if e.Run != res.ID {
			t.Errorf("event run = %q, want %q", e.Run, res.ID)
		}
		if e.Event == EventPointFallback && (e.Index != 2 || !strings.Contains(e.Error, "boom")) {
			t.Errorf("fallback event = %+v, want index 2 with panic error", e)
		}
		if e.Event == EventPointDone && e.MeanCluster == 0 {
			t.Errorf("wolff point %d traced without cluster size", e.Index)
		}
	}
	if counts[EventPointDone] != 3 || counts[EventPointFallback] != 1 {
		t.Errorf("event counts = %v", counts)
	}
}

func TestRunPoint_MatchesSweepRow(t *testing.T) {
	cfg := testConfig(constants.RuleMetropolis)
	cfg.SamplingSweeps = 400
	grid := Grid{{T: 2.1}, {T: 2.5, H: 0.02}}
	rows := runGrid(t, grid, cfg)

	pr, err := RunPoint(context.Background(), grid[1], 1, cfg)
	if err != nil {
		t.Fatalf("RunPoint() error = %v", err)
	}
	if !reflect.DeepEqual(pr.Row, rows[1]) {
		t.Errorf("RunPoint row = %+v, want %+v", pr.Row, rows[1])
	}
	if len(pr.Tree.Edges) != 63 {
		t.Errorf("tree edges = %d, want 63", len(pr.Tree.Edges))
	}
	if pr.Aggregate.Samples != 200 {
		t.Errorf("samples = %d, want 200", pr.Aggregate.Samples)
	}
}

func TestFallbackRow(t *testing.T) {
	cfg := DefaultConfig()
	cold := FallbackRow(cfg, Point{T: 1}, errors.New("x"))
	if cold.A != 1 || cold.TCMax != 255 || cold.Status != StatusFallback || cold.Error != "x" {
		t.Errorf("cold = %+v", cold)
	}
	hot := FallbackRow(cfg, Point{T: constants.CriticalTemperature}, nil)
	if hot.A != 0 || hot.R != 1 || hot.TCMax != 255 || hot.Error != "" {
		t.Errorf("hot = %+v", hot)
	}
	if !cold.Finite() || !hot.Finite() {
		t.Error("fallback rows must be finite")
	}
}
