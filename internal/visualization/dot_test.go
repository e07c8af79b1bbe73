package visualization

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nvandessel/orderlattice/internal/decompose"
)

func TestRenderDOT_GroundState(t *testing.T) {
	geo := decompose.DefaultGeometry(8)
	tree := decompose.GroundStateTree(geo)

	dot := RenderDOT(tree, geo)

	if !strings.HasPrefix(dot, "graph lattice {") {
		t.Errorf("DOT should start with 'graph lattice {', got: %s", dot[:40])
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT should end with '}'")
	}
	if got := strings.Count(dot, " -- "); got != 63 {
		t.Errorf("edge count = %d, want 63", got)
	}
	if got := strings.Count(dot, "pos=\""); got != 64 {
		t.Errorf("node count = %d, want 64", got)
	}
	if !strings.Contains(dot, `n0 -- n1 [color="steelblue"`) {
		t.Error("expected fine edge n0 -- n1 in steelblue")
	}
	if strings.Contains(dot, "dotted") {
		t.Error("ground state tree has no zero-weight edges")
	}
	if !strings.Contains(dot, `pos="7,-7!"`) {
		t.Error("expected last node pinned at (7,-7)")
	}
}

func TestRenderDOT_ZeroWeightDotted(t *testing.T) {
	geo := decompose.DefaultGeometry(2)
	tree := decompose.Tree{Nodes: 4, Components: 3, Edges: []decompose.TreeEdge{
		{Edge: decompose.Edge{I: 0, J: 1, Weight: 0, Distance: 1}, Band: decompose.BandFine},
	}}
	dot := RenderDOT(tree, geo)
	if !strings.Contains(dot, "style=dotted") {
		t.Errorf("zero-weight edge should be dotted:\n%s", dot)
	}
}

func TestRenderJSON(t *testing.T) {
	geo := decompose.DefaultGeometry(16)
	tree := decompose.GroundStateTree(geo)

	out := RenderJSON(tree, geo)

	if out["node_count"] != 256 || out["edge_count"] != 255 {
		t.Errorf("counts = %v/%v, want 256/255", out["node_count"], out["edge_count"])
	}
	if out["components"] != 1 {
		t.Errorf("components = %v, want 1", out["components"])
	}
	bands := out["bands"].(map[string]float64)
	if bands["fine"] != 255 || bands["meso"] != 0 || bands["coarse"] != 0 {
		t.Errorf("bands = %v, want all 255 bits fine", bands)
	}
	if _, err := json.Marshal(out); err != nil {
		t.Errorf("RenderJSON output should marshal: %v", err)
	}
}
