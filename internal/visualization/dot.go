// Package visualization renders the maximum spanning tree of a sampled
// lattice in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/orderlattice/internal/decompose"
)

// Format specifies the output format for tree rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// bandColors maps bands to DOT edge colors.
var bandColors = map[decompose.Band]string{
	decompose.BandFine:   "steelblue",
	decompose.BandMeso:   "goldenrod",
	decompose.BandCoarse: "tomato",
}

// blockColors checkerboards local blocks for node fills.
var blockColors = []string{"gray95", "gray80"}

// RenderDOT produces a Graphviz DOT representation of a spanning tree. Nodes
// are pinned to their lattice coordinates, so render with neato -n or fdp.
// Zero-weight edges are drawn dotted.
func RenderDOT(tree decompose.Tree, geo decompose.Geometry) string {
	var b strings.Builder
	b.WriteString("graph lattice {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  node [shape=circle, style=filled, width=0.25, fixedsize=true, fontname=\"Helvetica\", fontsize=8];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n\n")

	for i := 0; i < tree.Nodes; i++ {
		x, y := i%geo.Size, i/geo.Size
		parity := 0
		if geo.BlockSize > 0 {
			parity = (x/geo.BlockSize + y/geo.BlockSize) % len(blockColors)
		}
		color := blockColors[parity]
		b.WriteString(fmt.Sprintf("  n%d [label=\"%d\", pos=\"%d,%d!\", fillcolor=%q, tooltip=\"(%d,%d) block=%d macro=%d\"];\n",
			i, i, x, -y, color, x, y, geo.Block(i), geo.Macro(i)))
	}
	b.WriteString("\n")

	for _, e := range tree.Edges {
		style := "solid"
		if e.Weight == 0 {
			style = "dotted"
		}
		b.WriteString(fmt.Sprintf("  n%d -- n%d [color=%q, style=%s, penwidth=%.2f, tooltip=\"%s c=%.4f I=%.4f\"];\n",
			e.I, e.J, bandColors[e.Band], style, 0.5+3*e.Weight, e.Band, e.Correlation, e.Weight))
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON-ready tree representation with nodes, edges and
// per-band totals.
func RenderJSON(tree decompose.Tree, geo decompose.Geometry) map[string]any {
	nodes := make([]map[string]any, 0, tree.Nodes)
	for i := 0; i < tree.Nodes; i++ {
		nodes = append(nodes, map[string]any{
			"id":    i,
			"x":     i % geo.Size,
			"y":     i / geo.Size,
			"block": geo.Block(i),
			"macro": geo.Macro(i),
		})
	}

	edges := make([]map[string]any, 0, len(tree.Edges))
	for _, e := range tree.Edges {
		edges = append(edges, map[string]any{
			"source":      e.I,
			"target":      e.J,
			"band":        e.Band.String(),
			"weight":      e.Weight,
			"correlation": e.Correlation,
			"distance":    e.Distance,
		})
	}

	d := decompose.FromTree(tree)
	return map[string]any{
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
		"components": tree.Components,
		"bands": map[string]float64{
			"fine":   d.Fine,
			"meso":   d.Meso,
			"coarse": d.Coarse,
		},
	}
}
