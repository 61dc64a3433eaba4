// Package generator is the service-side graph model: it grows random graphs
// whose component sizes and node degrees are heavy-tailed, answers
// containment scans over connected components, and deletes nodes.
//
// A Graph is not safe for concurrent use; the server serializes access.
package generator

import (
	"errors"
	"math/rand/v2"
	"slices"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// ErrEmpty is returned by operations that need at least one node.
var ErrEmpty = errors.New("graph is empty")

// DefaultIsolation is the probability that a new node starts its own
// component instead of joining an existing one.
const DefaultIsolation = 0.3

// Graph is a mutable undirected graph with component tracking.
type Graph struct {
	rng       *rand.Rand
	isolation float64

	order []model.NodeID                  // insertion order
	adj   map[model.NodeID][]model.NodeID // neighbour lists, insertion order
	edges [][2]model.NodeID
	next  model.NodeID
	uf    unionFind

	infected   map[model.NodeID]struct{}
	principals map[model.NodeID]struct{}
}

// Option configures a Graph.
type Option func(*Graph)

// WithSeed makes growth and sampling deterministic.
func WithSeed(seed uint64) Option {
	return func(g *Graph) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithIsolation overrides DefaultIsolation. p is clamped to [0, 1].
func WithIsolation(p float64) Option {
	return func(g *Graph) { g.isolation = min(max(p, 0), 1) }
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		isolation: DefaultIsolation,
	}
	for _, o := range opts {
		o(g)
	}
	g.Reset()
	return g
}

// Reset discards every node, edge, and scan tag.
func (g *Graph) Reset() {
	g.order = nil
	g.adj = make(map[model.NodeID][]model.NodeID)
	g.edges = nil
	g.next = 0
	g.uf = unionFind{}
	g.infected = make(map[model.NodeID]struct{})
	g.principals = make(map[model.NodeID]struct{})
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id model.NodeID) bool {
	_, ok := g.adj[id]
	return ok
}

// AddNodes appends count new nodes. Each one either starts a new component
// or joins a component picked in proportion to its size, linking to between
// one and maxEdges members of it; that rich-get-richer rule gives component
// sizes and degrees a heavy tail. With maxEdges == 0 every node stays
// isolated. It returns the new ids in order.
func (g *Graph) AddNodes(count, maxEdges int) []model.NodeID {
	added := make([]model.NodeID, 0, count)
	for range count {
		added = append(added, g.addNode(maxEdges))
	}
	return added
}

func (g *Graph) addNode(maxEdges int) model.NodeID {
	id := g.next
	g.next++
	existing := len(g.order)
	g.order = append(g.order, id)
	g.adj[id] = []model.NodeID{}
	g.uf.grow(int(g.next))

	if maxEdges <= 0 || existing == 0 || g.rng.Float64() < g.isolation {
		return id
	}

	// A uniformly random node lands in a component with probability
	// proportional to that component's size.
	anchor := g.order[g.rng.IntN(existing)]
	want := 1 + g.rng.IntN(maxEdges)
	targets := []model.NodeID{anchor}
	for tries := 0; len(targets) < want && tries < 4*want; tries++ {
		// Walking to a neighbour of a chosen target favours high-degree nodes.
		from := targets[g.rng.IntN(len(targets))]
		nb := g.adj[from]
		if len(nb) == 0 {
			continue
		}
		cand := nb[g.rng.IntN(len(nb))]
		if !slices.Contains(targets, cand) {
			targets = append(targets, cand)
		}
	}
	for _, t := range targets {
		g.link(t, id)
	}
	return id
}

func (g *Graph) link(a, b model.NodeID) {
	g.edges = append(g.edges, [2]model.NodeID{a, b})
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	g.uf.union(a, b)
}

// Components returns the connected components, each sorted ascending, ordered
// by size descending and then by smallest id.
func (g *Graph) Components() [][]model.NodeID {
	byRoot := make(map[model.NodeID][]model.NodeID)
	for _, id := range g.order {
		r := g.uf.find(id)
		byRoot[r] = append(byRoot[r], id)
	}
	comps := make([][]model.NodeID, 0, len(byRoot))
	for _, c := range byRoot {
		slices.Sort(c)
		comps = append(comps, c)
	}
	slices.SortFunc(comps, func(a, b []model.NodeID) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return int(a[0] - b[0])
	})
	return comps
}

// Payload renders the graph in the wire shape, with the tags of the last
// scan still present.
func (g *Graph) Payload() *model.GraphPayload {
	p := &model.GraphPayload{
		Result:     model.ResultOK,
		V:          slices.Clone(g.order),
		E:          slices.Clone(g.edges),
		Neighbours: make([][]model.NodeID, len(g.order)),
	}
	if p.V == nil {
		p.V = []model.NodeID{}
	}
	if p.E == nil {
		p.E = [][2]model.NodeID{}
	}
	for i, id := range g.order {
		p.Neighbours[i] = slices.Clone(g.adj[id])
	}
	p.PoisonNodes = sortedKeys(g.infected)
	p.Principals = sortedKeys(g.principals)
	return p
}

func sortedKeys(set map[model.NodeID]struct{}) []model.NodeID {
	if len(set) == 0 {
		return nil
	}
	ids := make([]model.NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return model.SortIDs(ids)
}
