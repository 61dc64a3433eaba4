// Package graphstore holds the authoritative in-memory graph of a client
// session. It is mutated only by the construction channel, the mutation
// gateway, and containment scans (tags only), and it notifies a Renderer of
// every committed change.
package graphstore

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// ErrStaleGeneration is returned when a delta tagged with a superseded
// generation arrives after the store has been reset.
var ErrStaleGeneration = errors.New("stale generation")

// Store is the in-memory graph. The zero value is not usable; call New.
type Store struct {
	mu         sync.RWMutex
	renderer   Renderer
	logger     *slog.Logger
	generation uint64

	nodes map[model.NodeID]model.Node
	edges map[model.EdgeID]model.Edge
	adj   map[model.NodeID]map[model.EdgeID]struct{} // node -> incident edges
	tags  map[model.Tag]map[model.NodeID]struct{}
}

// New returns an empty store at generation zero. A nil renderer is replaced
// by NopRenderer and a nil logger by slog.Default().
func New(r Renderer, logger *slog.Logger) *Store {
	if r == nil {
		r = NopRenderer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{renderer: r, logger: logger}
	s.clearLocked()
	return s
}

func (s *Store) clearLocked() {
	s.nodes = make(map[model.NodeID]model.Node)
	s.edges = make(map[model.EdgeID]model.Edge)
	s.adj = make(map[model.NodeID]map[model.EdgeID]struct{})
	s.tags = map[model.Tag]map[model.NodeID]struct{}{
		model.TagInfected:  {},
		model.TagPrincipal: {},
	}
}

// Generation returns the current generation counter.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Reset clears the graph and advances the generation. Deltas carrying an
// older generation are rejected from now on.
func (s *Store) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.clearLocked()
	s.renderer.ClearGraph()
	s.logger.Debug("graph store reset", "generation", s.generation)
	return s.generation
}

// ApplyNode commits a node delivered under generation gen.
func (s *Store) ApplyNode(gen uint64, n model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return ErrStaleGeneration
	}
	if _, ok := s.nodes[n.ID]; ok {
		return &model.ProtocolError{Reason: fmt.Sprintf("node %d delivered twice in generation %d", n.ID, gen)}
	}
	if n.Label == "" {
		n.Label = model.NodeLabel(n.ID)
	}
	n.Tags = nil
	s.nodes[n.ID] = n
	s.renderer.AddNode(n)
	return nil
}

// ApplyEdge commits an edge delivered under generation gen. Both endpoints
// must already exist.
func (s *Store) ApplyEdge(gen uint64, e model.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return ErrStaleGeneration
	}
	if err := s.checkEdgeLocked(e); err != nil {
		return err
	}
	s.addEdgeLocked(e)
	s.renderer.AddEdge(e)
	return nil
}

func (s *Store) checkEdgeLocked(e model.Edge) error {
	if _, ok := s.edges[e.ID]; ok {
		return &model.ProtocolError{Reason: fmt.Sprintf("edge %d delivered twice", e.ID)}
	}
	if _, ok := s.nodes[e.Source]; !ok {
		return &model.ProtocolError{Reason: fmt.Sprintf("edge %d references unknown node %d", e.ID, e.Source)}
	}
	if _, ok := s.nodes[e.Target]; !ok {
		return &model.ProtocolError{Reason: fmt.Sprintf("edge %d references unknown node %d", e.ID, e.Target)}
	}
	return nil
}

func (s *Store) addEdgeLocked(e model.Edge) {
	s.edges[e.ID] = e
	for _, id := range []model.NodeID{e.Source, e.Target} {
		if s.adj[id] == nil {
			s.adj[id] = make(map[model.EdgeID]struct{})
		}
		s.adj[id][e.ID] = struct{}{}
	}
}

// Replace swaps the whole content of the store for snap without advancing the
// generation. Tags carried by the snapshot's nodes are kept. On error the
// store is left untouched.
func (s *Store) Replace(snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[model.NodeID]struct{}, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if _, dup := ids[n.ID]; dup {
			return &model.ProtocolError{Reason: fmt.Sprintf("snapshot repeats node %d", n.ID)}
		}
		ids[n.ID] = struct{}{}
	}
	edgeIDs := make(map[model.EdgeID]struct{}, len(snap.Edges))
	for _, e := range snap.Edges {
		if _, dup := edgeIDs[e.ID]; dup {
			return &model.ProtocolError{Reason: fmt.Sprintf("snapshot repeats edge %d", e.ID)}
		}
		edgeIDs[e.ID] = struct{}{}
		_, okS := ids[e.Source]
		_, okT := ids[e.Target]
		if !okS || !okT {
			return &model.ProtocolError{Reason: fmt.Sprintf("snapshot edge %d has a dangling endpoint", e.ID)}
		}
	}

	s.clearLocked()
	s.renderer.ClearGraph()
	for _, n := range snap.Nodes {
		for _, tag := range n.Tags {
			if set, ok := s.tags[tag]; ok {
				set[n.ID] = struct{}{}
			}
		}
		n.Tags = nil
		if n.Label == "" {
			n.Label = model.NodeLabel(n.ID)
		}
		s.nodes[n.ID] = n
		s.renderer.AddNode(s.withTagsLocked(n))
	}
	for _, e := range snap.Edges {
		s.addEdgeLocked(e)
		s.renderer.AddEdge(e)
	}
	s.logger.Debug("graph store replaced",
		"generation", s.generation,
		"nodes", len(s.nodes),
		"edges", len(s.edges),
	)
	return nil
}

// SetTags replaces every tag of the given kind with ids. Ids that are not in
// the store are ignored. It returns the number of nodes tagged.
func (s *Store) SetTags(tag model.Tag, ids []model.NodeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[model.NodeID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.nodes[id]; ok {
			set[id] = struct{}{}
		}
	}
	s.tags[tag] = set
	return len(set)
}

// RemoveNodes deletes the given nodes with their incident edges and tags and
// returns how many nodes were actually removed.
func (s *Store) RemoveNodes(ids []model.NodeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			continue
		}
		for eid := range s.adj[id] {
			e := s.edges[eid]
			delete(s.edges, eid)
			if other := e.Other(id); other != id {
				delete(s.adj[other], eid)
			}
		}
		delete(s.adj, id)
		delete(s.nodes, id)
		for _, set := range s.tags {
			delete(set, id)
		}
		s.renderer.RemoveNode(id)
		removed++
	}
	return removed
}

// Node returns the node with the given id and its current tags.
func (s *Store) Node(id model.NodeID) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	return s.withTagsLocked(n), true
}

func (s *Store) withTagsLocked(n model.Node) model.Node {
	n.Tags = nil
	for _, tag := range []model.Tag{model.TagInfected, model.TagPrincipal} {
		if _, ok := s.tags[tag][n.ID]; ok {
			n.Tags = append(n.Tags, tag)
		}
	}
	return n
}

// HasNode reports whether id is in the store.
func (s *Store) HasNode(id model.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Nodes returns a copy of all nodes ordered by id.
func (s *Store) Nodes() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodesLocked()
}

func (s *Store) nodesLocked() []model.Node {
	out := make([]model.Node, 0, len(s.nodes))
	for _, id := range slices.Sorted(maps.Keys(s.nodes)) {
		out = append(out, s.withTagsLocked(s.nodes[id]))
	}
	return out
}

// Edges returns a copy of all edges ordered by id.
func (s *Store) Edges() []model.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgesLocked()
}

func (s *Store) edgesLocked() []model.Edge {
	out := make([]model.Edge, 0, len(s.edges))
	for _, id := range slices.Sorted(maps.Keys(s.edges)) {
		out = append(out, s.edges[id])
	}
	return out
}

// Tagged returns the ids of nodes carrying tag, ascending.
func (s *Store) Tagged(tag model.Tag) []model.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.tags[tag]))
}

// Neighborhood is a node together with its directly adjacent nodes and the
// edges incident to it.
type Neighborhood struct {
	Node      model.NodeID
	Neighbors []model.NodeID
	Edges     []model.EdgeID
}

// Neighborhood returns the one-hop neighborhood of id from the adjacency
// index. It reports false when id is not in the store.
func (s *Store) Neighborhood(id model.NodeID) (Neighborhood, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return Neighborhood{}, false
	}
	nb := Neighborhood{Node: id}
	seen := make(map[model.NodeID]struct{})
	for _, eid := range slices.Sorted(maps.Keys(s.adj[id])) {
		nb.Edges = append(nb.Edges, eid)
		other := s.edges[eid].Other(id)
		if other == id {
			continue
		}
		if _, dup := seen[other]; !dup {
			seen[other] = struct{}{}
			nb.Neighbors = append(nb.Neighbors, other)
		}
	}
	slices.Sort(nb.Neighbors)
	return nb, true
}

// Snapshot returns a consistent copy of the whole graph.
func (s *Store) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &model.Snapshot{
		Generation: s.generation,
		Nodes:      s.nodesLocked(),
		Edges:      s.edgesLocked(),
	}
}
