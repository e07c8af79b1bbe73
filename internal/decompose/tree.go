package decompose

import "sort"

// TreeEdge is a spanning-tree edge with its band attribution.
type TreeEdge struct {
	Edge
	Band Band
}

// Tree is a maximum spanning tree (or forest, when the graph is disconnected).
type Tree struct {
	Nodes      int
	Edges      []TreeEdge
	Components int
}

// Weight returns the summed edge weight of the tree.
func (t Tree) Weight() float64 {
	var w float64
	for _, e := range t.Edges {
		w += e.Weight
	}
	return w
}

// MaximumSpanningTree runs Kruskal's algorithm over g. Edges are taken by
// weight descending, then distance ascending, then (I, J) ascending, so the
// tree is fully determined by the graph.
func MaximumSpanningTree(g Graph, geo Geometry) Tree {
	order := make([]int, len(g.Edges))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		ea, eb := g.Edges[order[a]], g.Edges[order[b]]
		if ea.Weight != eb.Weight {
			return ea.Weight > eb.Weight
		}
		if ea.Distance != eb.Distance {
			return ea.Distance < eb.Distance
		}
		if ea.I != eb.I {
			return ea.I < eb.I
		}
		return ea.J < eb.J
	})

	uf := newUnionFind(g.Nodes)
	tree := Tree{Nodes: g.Nodes, Components: g.Nodes}
	if g.Nodes > 1 {
		tree.Edges = make([]TreeEdge, 0, g.Nodes-1)
	}
	for _, k := range order {
		e := g.Edges[k]
		if !uf.union(e.I, e.J) {
			continue
		}
		tree.Edges = append(tree.Edges, TreeEdge{Edge: e, Band: geo.Classify(e.I, e.J)})
		tree.Components--
		if tree.Components == 1 {
			break
		}
	}
	return tree
}

// unionFind is a disjoint-set forest with path halving and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// union merges the sets holding a and b and reports whether they were distinct.
func (uf *unionFind) union(a, b int) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return false
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	return true
}
