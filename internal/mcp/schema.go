package mcp

import (
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
)

// SweepInput defines the input for the orderlattice_sweep tool. Zero values
// fall back to the configured defaults.
type SweepInput struct {
	Temperatures []float64 `json:"temperatures" jsonschema:"Temperatures to simulate (required, at most 64 points in total)"`
	Fields       []float64 `json:"fields,omitempty" jsonschema:"External field values (default: [0])"`
	Size         int       `json:"size,omitempty" jsonschema:"Lattice side L (default from config, at most 64)"`
	Rule         string    `json:"rule,omitempty" jsonschema:"Update rule: 'metropolis' or 'wolff'"`
	Seed         *uint64   `json:"seed,omitempty" jsonschema:"Base seed for reproducible runs"`
	NoSave       bool      `json:"no_save,omitempty" jsonschema:"Do not persist the run (default: false)"`
}

// SweepOutput defines the output for the orderlattice_sweep tool.
type SweepOutput struct {
	RunID     string      `json:"run_id" jsonschema:"ID of the sweep run"`
	Saved     bool        `json:"saved" jsonschema:"Whether the run was stored"`
	Points    int         `json:"points" jsonschema:"Number of grid points"`
	Fallbacks int         `json:"fallbacks" jsonschema:"Number of points that produced fallback rows"`
	Rows      []sweep.Row `json:"rows" jsonschema:"One row per point in grid order"`
}

// PointInput defines the input for the orderlattice_point tool.
type PointInput struct {
	T      float64 `json:"t" jsonschema:"Temperature (required, > 0)"`
	H      float64 `json:"h,omitempty" jsonschema:"External field (default: 0)"`
	Size   int     `json:"size,omitempty" jsonschema:"Lattice side L (default from config, at most 64)"`
	Rule   string  `json:"rule,omitempty" jsonschema:"Update rule: 'metropolis' or 'wolff'"`
	Seed   *uint64 `json:"seed,omitempty" jsonschema:"Base seed for reproducible runs"`
	Format string  `json:"format,omitempty" jsonschema:"Spanning tree format: 'json' (default) or 'dot'"`
}

// PointOutput defines the output for the orderlattice_point tool.
type PointOutput struct {
	Row       sweep.Row `json:"row" jsonschema:"Result row for the point"`
	Format    string    `json:"format" jsonschema:"Format of the tree field"`
	Tree      any       `json:"tree" jsonschema:"Maximum spanning tree of the correlation graph"`
	EdgeCount int       `json:"edge_count" jsonschema:"Number of tree edges"`
}

// RunsInput defines the input for the orderlattice_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to list, newest first (default: all)"`
}

// RunsOutput defines the output for the orderlattice_runs tool.
type RunsOutput struct {
	Runs  []store.RunSummary `json:"runs" jsonschema:"Stored sweep runs"`
	Count int                `json:"count" jsonschema:"Number of runs"`
}

// ResultsInput defines the input for the orderlattice_results tool.
type ResultsInput struct {
	ID     string `json:"id" jsonschema:"Run ID or unique prefix (required)"`
	Format string `json:"format,omitempty" jsonschema:"Output format: 'rows' (default) or 'csv'"`
}

// ResultsOutput defines the output for the orderlattice_results tool.
type ResultsOutput struct {
	RunID string      `json:"run_id" jsonschema:"Full run ID"`
	Rows  []sweep.Row `json:"rows,omitempty" jsonschema:"Rows in grid order"`
	CSV   string      `json:"csv,omitempty" jsonschema:"Rows as CSV with columns T,H,A,R,Fine,Meso,Coarse"`
	Count int         `json:"count" jsonschema:"Number of rows"`
}

// DeleteInput defines the input for the orderlattice_delete tool.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"Run ID or unique prefix (required)"`
}

// DeleteOutput defines the output for the orderlattice_delete tool.
type DeleteOutput struct {
	RunID   string `json:"run_id" jsonschema:"Full ID of the deleted run"`
	Deleted bool   `json:"deleted" jsonschema:"Whether the run was deleted"`
}
