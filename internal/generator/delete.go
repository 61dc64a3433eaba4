package generator

import (
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// Delete removes the given nodes and their incident edges, recomputes the
// components, and drops the removed nodes from the scan tags. Unknown ids
// are ignored. It returns the number of nodes removed.
func (g *Graph) Delete(ids []model.NodeID) int {
	doomed := make(map[model.NodeID]struct{}, len(ids))
	for _, id := range ids {
		if g.Has(id) {
			doomed[id] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return 0
	}

	order := g.order[:0]
	for _, id := range g.order {
		if _, gone := doomed[id]; gone {
			delete(g.adj, id)
			delete(g.infected, id)
			delete(g.principals, id)
			continue
		}
		order = append(order, id)
	}
	g.order = order

	oldEdges := g.edges
	g.edges = nil
	g.uf = unionFind{}
	g.uf.grow(int(g.next))
	for _, id := range g.order {
		g.adj[id] = g.adj[id][:0]
	}
	for _, e := range oldEdges {
		_, a := doomed[e[0]]
		_, b := doomed[e[1]]
		if a || b {
			continue
		}
		g.link(e[0], e[1])
	}
	return len(doomed)
}

// Select returns the ids a delete request targets: every node carrying tag
// from the last scan.
func (g *Graph) Select(tag model.Tag) []model.NodeID {
	return g.Tagged(tag)
}

// Sample returns n distinct node ids picked at random, ascending. n is capped
// at the graph size.
func (g *Graph) Sample(n int) []model.NodeID {
	n = min(max(n, 0), len(g.order))
	perm := g.rng.Perm(len(g.order))
	out := make([]model.NodeID, 0, n)
	for _, i := range perm[:n] {
		out = append(out, g.order[i])
	}
	return model.SortIDs(out)
}
