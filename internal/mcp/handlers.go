package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/export"
	"github.com/nvandessel/orderlattice/internal/ratelimit"
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
	"github.com/nvandessel/orderlattice/internal/visualization"
)

// Tool calls run synchronously, so sweeps requested over MCP are bounded.
const (
	maxToolPoints = 64
	maxToolSize   = 64
)

const latestRunURI = "orderlattice://runs/latest"

// registerTools registers all orderlattice MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "orderlattice_sweep",
		Description: "Run a temperature x field sweep and return one row (T, H, A, R, Fine, Meso, Coarse) per point",
	}, s.handleSweep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "orderlattice_point",
		Description: "Simulate a single (T, H) point and return its row and correlation spanning tree",
	}, s.handlePoint)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "orderlattice_runs",
		Description: "List stored sweep runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "orderlattice_results",
		Description: "Fetch the rows of a stored sweep run as structured rows or CSV",
	}, s.handleResults)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "orderlattice_delete",
		Description: "Delete a stored sweep run",
	}, s.handleDelete)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         latestRunURI,
		Name:        "orderlattice-latest-run",
		Description: "Order parameter table of the most recent stored sweep.",
		MIMEType:    "text/markdown",
	}, s.handleLatestRunResource)
}

// handleLatestRunResource renders the newest stored run as a markdown table.
func (s *Server) handleLatestRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	runs, err := s.store.ListRuns(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	text := "# Latest Sweep\n\nNo stored runs yet. Start one with `orderlattice_sweep`.\n"
	if len(runs) > 0 {
		res, err := s.store.GetRun(ctx, runs[0].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", runs[0].ID, err)
		}
		text = renderMarkdown(res)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      latestRunURI,
				MIMEType: "text/markdown",
				Text:     text,
			},
		},
	}, nil
}

func renderMarkdown(res *sweep.Result) string {
	var sb strings.Builder
	sb.WriteString("# Latest Sweep\n\n")
	fmt.Fprintf(&sb, "Run `%s`: L=%d, %s, seed %d, %d points",
		res.ID, res.Config.Size, res.Config.Rule, res.Config.BaseSeed, len(res.Rows))
	if n := res.Fallbacks(); n > 0 {
		fmt.Fprintf(&sb, " (%d fallback)", n)
	}
	sb.WriteString("\n\n| T | H | A | R | Fine | Meso | Coarse |\n|---|---|---|---|---|---|---|\n")
	for _, r := range res.Rows {
		fmt.Fprintf(&sb, "| %.4g | %.4g | %.4f | %.4f | %.4g | %.4g | %.4g |\n",
			r.T, r.H, r.A, r.R, r.Fine, r.Meso, r.Coarse)
	}
	return sb.String()
}

// chargeSweep takes the Monte Carlo work of points points under cfg from
// the shared work budget.
func (s *Server) chargeSweep(tool string, points int, cfg sweep.Config) error {
	sweeps := cfg.EquilibrationSweeps + cfg.SamplingSweeps
	return s.limits.ChargeWork(tool, ratelimit.SweepCost(points, cfg.Size, sweeps))
}

// sweepConfig applies per-call overrides to the configured defaults.
func (s *Server) sweepConfig(size int, rule string, seed *uint64) (sweep.Config, error) {
	cfg := s.settings.ToSweepConfig()
	cfg.Logger = s.logger
	if size != 0 {
		cfg.Size = size
	}
	if cfg.Size > maxToolSize {
		return sweep.Config{}, fmt.Errorf("size %d exceeds the MCP limit of %d", cfg.Size, maxToolSize)
	}
	if rule != "" {
		cfg.Rule = constants.UpdateRule(strings.ToLower(rule))
	}
	if seed != nil {
		cfg.BaseSeed = *seed
	}
	return cfg, nil
}

// handleSweep implements the orderlattice_sweep tool.
func (s *Server) handleSweep(ctx context.Context, req *sdk.CallToolRequest, args SweepInput) (_ *sdk.CallToolResult, _ SweepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("orderlattice_sweep", start, retErr, sanitizeToolParams(map[string]any{
			"size": args.Size, "rule": args.Rule, "points": len(args.Temperatures) * max(len(args.Fields), 1),
			"no_save": args.NoSave,
		}))
	}()

	fields := args.Fields
	if len(fields) == 0 {
		fields = []float64{0}
	}
	grid := sweep.CartesianGrid(args.Temperatures, fields)
	if len(grid) == 0 {
		return nil, SweepOutput{}, errors.New("temperatures is required")
	}
	if len(grid) > maxToolPoints {
		return nil, SweepOutput{}, fmt.Errorf("%d points exceeds the MCP limit of %d", len(grid), maxToolPoints)
	}

	cfg, err := s.sweepConfig(args.Size, args.Rule, args.Seed)
	if err != nil {
		return nil, SweepOutput{}, err
	}
	if err := s.chargeSweep("orderlattice_sweep", len(grid), cfg); err != nil {
		return nil, SweepOutput{}, err
	}

	res, err := sweep.RunSweep(ctx, grid, cfg)
	if err != nil {
		return nil, SweepOutput{}, err
	}

	out := SweepOutput{
		RunID:     res.ID,
		Points:    len(res.Rows),
		Fallbacks: res.Fallbacks(),
		Rows:      res.Rows,
	}
	if !args.NoSave {
		if err := s.store.SaveRun(ctx, res); err != nil {
			return nil, SweepOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.Saved = true
	}
	return nil, out, nil
}

// handlePoint implements the orderlattice_point tool.
func (s *Server) handlePoint(ctx context.Context, req *sdk.CallToolRequest, args PointInput) (_ *sdk.CallToolResult, _ PointOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("orderlattice_point", start, retErr, sanitizeToolParams(map[string]any{
			"t": args.T, "h": args.H, "size": args.Size, "rule": args.Rule, "format": args.Format,
		}))
	}()

	cfg, err := s.sweepConfig(args.Size, args.Rule, args.Seed)
	if err != nil {
		return nil, PointOutput{}, err
	}
	if err := s.chargeSweep("orderlattice_point", 1, cfg); err != nil {
		return nil, PointOutput{}, err
	}

	pr, err := sweep.RunPoint(ctx, sweep.Point{T: args.T, H: args.H}, 0, cfg)
	if err != nil {
		return nil, PointOutput{}, err
	}

	out := PointOutput{Row: pr.Row, EdgeCount: len(pr.Tree.Edges)}
	switch visualization.Format(strings.ToLower(args.Format)) {
	case "", visualization.FormatJSON:
		out.Format = "json"
		out.Tree = visualization.RenderJSON(pr.Tree, cfg.Geometry())
	case visualization.FormatDOT:
		out.Format = "dot"
		out.Tree = visualization.RenderDOT(pr.Tree, cfg.Geometry())
	default:
		return nil, PointOutput{}, fmt.Errorf("unsupported format %q (use 'dot' or 'json')", args.Format)
	}
	return nil, out, nil
}

// handleRuns implements the orderlattice_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("orderlattice_runs", start, retErr, sanitizeToolParams(map[string]any{
			"limit": args.Limit,
		}))
	}()

	if err := s.limits.ChargeRequest("orderlattice_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	runs, err := s.store.ListRuns(ctx, args.Limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	return nil, RunsOutput{Runs: runs, Count: len(runs)}, nil
}

// handleResults implements the orderlattice_results tool.
func (s *Server) handleResults(ctx context.Context, req *sdk.CallToolRequest, args ResultsInput) (_ *sdk.CallToolResult, _ ResultsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("orderlattice_results", start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID, "format": args.Format,
		}))
	}()

	if err := s.limits.ChargeRequest("orderlattice_results"); err != nil {
		return nil, ResultsOutput{}, err
	}

	id, err := s.store.ResolveID(ctx, args.ID)
	if err != nil {
		return nil, ResultsOutput{}, err
	}
	rows, err := s.store.Rows(ctx, id)
	if err != nil {
		return nil, ResultsOutput{}, fmt.Errorf("failed to load rows: %w", err)
	}

	out := ResultsOutput{RunID: id, Count: len(rows)}
	switch strings.ToLower(args.Format) {
	case "", "rows":
		out.Rows = rows
	case "csv":
		var sb strings.Builder
		if err := export.ExportRowsToCSV(&sb, rows, export.DefaultCSVConfig()); err != nil {
			return nil, ResultsOutput{}, fmt.Errorf("failed to write csv: %w", err)
		}
		out.CSV = sb.String()
	default:
		return nil, ResultsOutput{}, fmt.Errorf("unsupported format %q (use 'rows' or 'csv')", args.Format)
	}
	return nil, out, nil
}

// handleDelete implements the orderlattice_delete tool.
func (s *Server) handleDelete(ctx context.Context, req *sdk.CallToolRequest, args DeleteInput) (_ *sdk.CallToolResult, _ DeleteOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("orderlattice_delete", start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID,
		}))
	}()

	if err := s.limits.ChargeRequest("orderlattice_delete"); err != nil {
		return nil, DeleteOutput{}, err
	}

	id, err := s.store.ResolveID(ctx, args.ID)
	if err != nil {
		return nil, DeleteOutput{}, err
	}
	if err := s.store.DeleteRun(ctx, id); err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete run: %w", err)
	}
	s.logger.Info("run deleted", "run", id)
	return nil, DeleteOutput{RunID: id, Deleted: true}, nil
}
