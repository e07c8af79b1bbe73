package mcp

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/orderlattice/internal/ratelimit"
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
)

func seedPtr(v uint64) *uint64 { return &v }

func TestHandleSweep(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	result, out, err := server.handleSweep(ctx, req, SweepInput{
		Temperatures: []float64{0.5, 10},
		Seed:         seedPtr(7),
	})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if out.Points != 2 || len(out.Rows) != 2 {
		t.Fatalf("points = %d rows = %d, want 2", out.Points, len(out.Rows))
	}
	if !out.Saved {
		t.Error("run should be saved by default")
	}
	if out.Rows[0].A < 0.9 {
		t.Errorf("A(T=0.5) = %v, want > 0.9", out.Rows[0].A)
	}
	if out.Rows[1].A > 0.2 {
		t.Errorf("A(T=10) = %v, want < 0.2", out.Rows[1].A)
	}
	for _, row := range out.Rows {
		if math.Abs(row.A+row.R-1) > 1e-12 {
			t.Errorf("A+R = %v, want 1", row.A+row.R)
		}
	}

	stored, err := server.store.GetRun(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GetRun(%s): %v", out.RunID, err)
	}
	if stored.Config.BaseSeed != 7 {
		t.Errorf("stored seed = %d, want 7", stored.Config.BaseSeed)
	}
}

func TestHandleSweep_NoSave(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSweep(ctx, nil, SweepInput{
		Temperatures: []float64{1.5},
		Fields:       []float64{0, 0.1},
		Rule:         "WOLFF",
		NoSave:       true,
	})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	if out.Saved {
		t.Error("Saved = true with no_save")
	}
	if out.Points != 2 {
		t.Errorf("points = %d, want 2", out.Points)
	}
	if out.Rows[0].MeanCluster == 0 {
		t.Error("wolff rows should report a mean cluster size")
	}
	if _, err := server.store.GetRun(ctx, out.RunID); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("GetRun after no_save: err = %v, want ErrRunNotFound", err)
	}
}

func TestHandleSweep_Errors(t *testing.T) {
	many := make([]float64, maxToolPoints+1)
	for i := range many {
		many[i] = 1 + float64(i)/10
	}

	tests := []struct {
		name    string
		input   SweepInput
		wantErr string
	}{
		{"no temperatures", SweepInput{}, "temperatures is required"},
		{"too many points", SweepInput{Temperatures: many}, "exceeds the MCP limit"},
		{"size too large", SweepInput{Temperatures: []float64{2}, Size: maxToolSize + 1}, "exceeds the MCP limit"},
		{"bad rule", SweepInput{Temperatures: []float64{2}, Rule: "glauber"}, "rule"},
		{"bad temperature", SweepInput{Temperatures: []float64{-1}}, "grid[0].t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t)
			_, _, err := server.handleSweep(context.Background(), nil, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandleSweep_InvalidConfigIsTyped(t *testing.T) {
	server, _ := setupTestServer(t)
	_, _, err := server.handleSweep(context.Background(), nil, SweepInput{Temperatures: []float64{0}})
	if !errors.Is(err, sweep.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestHandleSweep_ChargesWorkBudget(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	// testSettings: L=8, 200+200 sweeps per point.
	onePoint := ratelimit.SweepCost(1, 8, 400)
	server.limits = &ratelimit.Limits{Work: ratelimit.NewBucket(0, 3*onePoint)}

	if _, _, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{2, 3}, NoSave: true}); err != nil {
		t.Fatalf("two-point sweep: %v", err)
	}
	if _, _, err := server.handlePoint(ctx, nil, PointInput{T: 2}); err != nil {
		t.Fatalf("point within the remaining budget: %v", err)
	}

	_, _, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{2}, NoSave: true})
	var le *ratelimit.LimitError
	if !errors.As(err, &le) || le.Tool != "orderlattice_sweep" {
		t.Fatalf("sweep on an empty budget err = %v, want LimitError", err)
	}
	if _, _, err := server.handlePoint(ctx, nil, PointInput{T: 2}); err == nil {
		t.Error("point on an empty budget should be limited")
	}

	// Store tools have their own buckets.
	if _, _, err := server.handleRuns(ctx, nil, RunsInput{}); err != nil {
		t.Errorf("runs should not be limited by the work budget: %v", err)
	}
}

func TestHandleSweep_LargerLatticeCostsMore(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	server.limits = &ratelimit.Limits{Work: ratelimit.NewBucket(0, ratelimit.SweepCost(1, 16, 400)-1)}

	_, _, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{2}, Size: 16, NoSave: true})
	if err != nil {
		t.Fatalf("oversized request on a full bucket should pass: %v", err)
	}
	if _, _, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{2}, NoSave: true}); err == nil {
		t.Error("small sweep after the bucket was drained should be limited")
	}
}

func TestHandlePoint(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		wantFormat string
	}{
		{"default json", "", "json"},
		{"dot", "dot", "dot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t)
			_, out, err := server.handlePoint(context.Background(), nil, PointInput{T: 0.5, Format: tt.format})
			if err != nil {
				t.Fatalf("handlePoint failed: %v", err)
			}
			if out.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", out.Format, tt.wantFormat)
			}
			if out.EdgeCount != 63 {
				t.Errorf("edge count = %d, want 63 for L=8", out.EdgeCount)
			}
			if out.Row.Status != sweep.StatusOK {
				t.Errorf("status = %q, want ok", out.Row.Status)
			}
			switch tree := out.Tree.(type) {
			case string:
				if !strings.HasPrefix(tree, "graph lattice {") {
					t.Errorf("dot tree = %.40q", tree)
				}
			case map[string]any:
				if tree["edge_count"] != 63 {
					t.Errorf("json edge_count = %v, want 63", tree["edge_count"])
				}
			default:
				t.Errorf("unexpected tree type %T", out.Tree)
			}
		})
	}
}

func TestHandlePoint_BadFormat(t *testing.T) {
	server, _ := setupTestServer(t)
	_, _, err := server.handlePoint(context.Background(), nil, PointInput{T: 2, Format: "html"})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("err = %v, want unsupported format", err)
	}
}

func TestHandlePoint_MatchesSweepRow(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, point, err := server.handlePoint(ctx, nil, PointInput{T: 2.2, Seed: seedPtr(11)})
	if err != nil {
		t.Fatalf("handlePoint failed: %v", err)
	}
	_, sw, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{2.2}, Seed: seedPtr(11), NoSave: true})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	if point.Row.A != sw.Rows[0].A || point.Row.Fine != sw.Rows[0].Fine {
		t.Errorf("point row %+v differs from sweep row %+v", point.Row, sw.Rows[0])
	}
}

func TestHandleRunsResultsDelete(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, runs, err := server.handleRuns(ctx, nil, RunsInput{})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if runs.Count != 0 || runs.Runs == nil {
		t.Errorf("empty store: count = %d runs = %v, want 0 and non-nil", runs.Count, runs.Runs)
	}

	_, sw, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{1.5, 3}})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}

	_, runs, err = server.handleRuns(ctx, nil, RunsInput{Limit: 5})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if runs.Count != 1 || runs.Runs[0].ID != sw.RunID || runs.Runs[0].Points != 2 {
		t.Fatalf("runs = %+v, want the single sweep", runs.Runs)
	}

	prefix := sw.RunID[:8]
	_, rows, err := server.handleResults(ctx, nil, ResultsInput{ID: prefix})
	if err != nil {
		t.Fatalf("handleResults failed: %v", err)
	}
	if rows.RunID != sw.RunID || rows.Count != 2 || len(rows.Rows) != 2 {
		t.Errorf("results = %+v", rows)
	}
	if rows.Rows[0].A != sw.Rows[0].A {
		t.Errorf("stored A = %v, want %v", rows.Rows[0].A, sw.Rows[0].A)
	}

	_, csv, err := server.handleResults(ctx, nil, ResultsInput{ID: prefix, Format: "csv"})
	if err != nil {
		t.Fatalf("handleResults csv failed: %v", err)
	}
	if !strings.HasPrefix(csv.CSV, "T,H,A,R,Fine,Meso,Coarse\n") || csv.Rows != nil {
		t.Errorf("csv output = %q rows = %v", csv.CSV, csv.Rows)
	}

	_, del, err := server.handleDelete(ctx, nil, DeleteInput{ID: prefix})
	if err != nil {
		t.Fatalf("handleDelete failed: %v", err)
	}
	if !del.Deleted || del.RunID != sw.RunID {
		t.Errorf("delete = %+v", del)
	}

	_, _, err = server.handleResults(ctx, nil, ResultsInput{ID: prefix})
	if !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("results after delete: err = %v, want ErrRunNotFound", err)
	}
}

func TestHandleLatestRunResource(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	res, err := server.handleLatestRunResource(ctx, nil)
	if err != nil {
		t.Fatalf("resource on empty store: %v", err)
	}
	if !strings.Contains(res.Contents[0].Text, "No stored runs yet") {
		t.Errorf("empty resource text = %q", res.Contents[0].Text)
	}

	_, sw, err := server.handleSweep(ctx, nil, SweepInput{Temperatures: []float64{1.5, 3}})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	res, err = server.handleLatestRunResource(ctx, nil)
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	text := res.Contents[0].Text
	if !strings.Contains(text, sw.RunID) {
		t.Errorf("resource should name run %s:\n%s", sw.RunID, text)
	}
	if got := strings.Count(text, "\n| "); got != 3 {
		t.Errorf("table lines = %d, want header + 2 rows:\n%s", got, text)
	}
	if res.Contents[0].MIMEType != "text/markdown" {
		t.Errorf("MIMEType = %q", res.Contents[0].MIMEType)
	}
}
