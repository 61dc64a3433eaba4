// Package interaction projects a node selection onto the graph: the selected
// node, its direct neighbors, and the edges between them. It never mutates
// the store.
package interaction

import (
	"slices"

	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// Source answers one-hop adjacency lookups. *graphstore.Store implements it.
type Source interface {
	Neighborhood(id model.NodeID) (graphstore.Neighborhood, bool)
}

// Selection is the set of highlighted nodes and edges. The zero value is the
// background selection: nothing highlighted.
type Selection struct {
	Selected *model.NodeID
	Nodes    []model.NodeID // ascending, includes the selected node
	Edges    []model.EdgeID // ascending
}

// Empty reports whether nothing is highlighted.
func (s Selection) Empty() bool {
	return s.Selected == nil
}

// HasNode reports whether id is highlighted.
func (s Selection) HasNode(id model.NodeID) bool {
	_, ok := slices.BinarySearch(s.Nodes, id)
	return ok
}

// HasEdge reports whether id is highlighted.
func (s Selection) HasEdge(id model.EdgeID) bool {
	_, ok := slices.BinarySearch(s.Edges, id)
	return ok
}

// Muted returns the nodes and edges of snap outside the selection, which a
// renderer dims. The background selection mutes nothing.
func (s Selection) Muted(snap *model.Snapshot) ([]model.NodeID, []model.EdgeID) {
	if s.Empty() {
		return nil, nil
	}
	var nodes []model.NodeID
	for _, n := range snap.Nodes {
		if !s.HasNode(n.ID) {
			nodes = append(nodes, n.ID)
		}
	}
	var edges []model.EdgeID
	for _, e := range snap.Edges {
		if !s.HasEdge(e.ID) {
			edges = append(edges, e.ID)
		}
	}
	return nodes, edges
}

// Highlight selects id and its one-hop neighborhood with a single adjacency
// lookup. It reports false, with the background selection, when id is not in
// the graph.
func Highlight(src Source, id model.NodeID) (Selection, bool) {
	nb, ok := src.Neighborhood(id)
	if !ok {
		return Clear(), false
	}
	nodes := append([]model.NodeID{id}, nb.Neighbors...)
	slices.Sort(nodes)
	edges := slices.Clone(nb.Edges)
	slices.Sort(edges)
	return Selection{Selected: &id, Nodes: nodes, Edges: edges}, true
}

// Clear returns the background selection.
func Clear() Selection {
	return Selection{}
}
