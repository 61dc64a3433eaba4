package model

import (
	"encoding/json"
	"fmt"
)

// Result codes carried in the "result" field of every service payload.
const (
	ResultOK       = 200
	ResultNotFound = 404
)

// GraphPayload is the JSON shape shared by every service response and by the
// data events of the construction stream.
//
// V and Neighbours are aligned by index: Neighbours[i] lists the neighbors of
// V[i]. E is append-only within one stream, so an edge's index is its id.
type GraphPayload struct {
	Result       int         `json:"result,omitempty"`
	Message      string      `json:"message,omitempty"`
	V            []NodeID    `json:"V"`
	E            [][2]NodeID `json:"E"`
	Neighbours   [][]NodeID  `json:"neighbours"`
	PoisonNodes  []NodeID    `json:"PoisonNodes,omitempty"`
	Principals   []NodeID    `json:"Principals,omitempty"`
	DeletedNodes *int        `json:"deletedNodes,omitempty"`
}

// IsNotFound reports whether the payload carries the not-found sentinel.
func (p *GraphPayload) IsNotFound() bool {
	return p.Result == ResultNotFound
}

// IsOK reports whether the payload is a normal (non-failure) result.
// A zero result is treated as OK since the field is optional.
func (p *GraphPayload) IsOK() bool {
	return p.Result == 0 || (p.Result >= 200 && p.Result < 300)
}

// Err converts a failure payload into an error. It returns ErrNotFound for the
// not-found sentinel, a *ServiceError for any other failure, and nil otherwise.
func (p *GraphPayload) Err() error {
	switch {
	case p.IsNotFound():
		return ErrNotFound
	case !p.IsOK():
		return &ServiceError{Result: p.Result, Message: p.Message}
	}
	return nil
}

// NeighbourCount returns the neighbor count reported for V[i], or 0 when the
// neighbours list is shorter than V.
func (p *GraphPayload) NeighbourCount(i int) int {
	if i < 0 || i >= len(p.Neighbours) {
		return 0
	}
	return len(p.Neighbours[i])
}

// Snapshot converts the payload into a full graph snapshot. Tags carried in
// PoisonNodes and Principals are attached to their nodes. Edges referencing a
// node absent from V are rejected as a protocol violation.
func (p *GraphPayload) Snapshot() (*Snapshot, error) {
	tags := make(map[NodeID][]Tag)
	for _, id := range p.PoisonNodes {
		tags[id] = append(tags[id], TagInfected)
	}
	for _, id := range p.Principals {
		tags[id] = append(tags[id], TagPrincipal)
	}

	snap := &Snapshot{
		Nodes: make([]Node, 0, len(p.V)),
		Edges: make([]Edge, 0, len(p.E)),
	}
	seen := make(map[NodeID]struct{}, len(p.V))
	for i, id := range p.V {
		if _, dup := seen[id]; dup {
			return nil, &ProtocolError{Reason: fmt.Sprintf("duplicate node %d in snapshot", id)}
		}
		seen[id] = struct{}{}
		n := NewNode(id, p.NeighbourCount(i))
		n.Tags = tags[id]
		snap.Nodes = append(snap.Nodes, n)
	}
	for i, e := range p.E {
		if _, ok := seen[e[0]]; !ok {
			return nil, &ProtocolError{Reason: fmt.Sprintf("edge %d references unknown node %d", i, e[0])}
		}
		if _, ok := seen[e[1]]; !ok {
			return nil, &ProtocolError{Reason: fmt.Sprintf("edge %d references unknown node %d", i, e[1])}
		}
		snap.Edges = append(snap.Edges, Edge{ID: EdgeID(i), Source: e[0], Target: e[1]})
	}
	return snap, nil
}

// Snapshot is a complete, self-consistent copy of a graph.
type Snapshot struct {
	Generation uint64 `json:"generation"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
}

// Tagged returns the ids of the snapshot's nodes carrying tag, ascending.
func (s *Snapshot) Tagged(tag Tag) []NodeID {
	var ids []NodeID
	for _, n := range s.Nodes {
		if n.HasTag(tag) {
			ids = append(ids, n.ID)
		}
	}
	return SortIDs(ids)
}

// Payload converts the snapshot back into the wire shape.
func (s *Snapshot) Payload() *GraphPayload {
	p := &GraphPayload{
		Result:     ResultOK,
		V:          make([]NodeID, 0, len(s.Nodes)),
		E:          make([][2]NodeID, 0, len(s.Edges)),
		Neighbours: make([][]NodeID, 0, len(s.Nodes)),
	}
	adj := make(map[NodeID][]NodeID, len(s.Nodes))
	for _, e := range s.Edges {
		p.E = append(p.E, [2]NodeID{e.Source, e.Target})
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}
	for _, n := range s.Nodes {
		p.V = append(p.V, n.ID)
		nb := adj[n.ID]
		if nb == nil {
			nb = []NodeID{}
		}
		p.Neighbours = append(p.Neighbours, nb)
	}
	p.PoisonNodes = s.Tagged(TagInfected)
	p.Principals = s.Tagged(TagPrincipal)
	return p
}

// MarshalJSONL returns the snapshot as newline-delimited JSON: one line per
// node followed by one line per edge.
func (s *Snapshot) MarshalJSONL() ([]byte, error) {
	var out []byte
	for _, n := range s.Nodes {
		line, err := json.Marshal(struct {
			Kind string `json:"kind"`
			Node
		}{"node", n})
		if err != nil {
			return nil, fmt.Errorf("marshal node %d: %w", n.ID, err)
		}
		out = append(append(out, line...), '\n')
	}
	for _, e := range s.Edges {
		line, err := json.Marshal(struct {
			Kind string `json:"kind"`
			Edge
		}{"edge", e})
		if err != nil {
			return nil, fmt.Errorf("marshal edge %d: %w", e.ID, err)
		}
		out = append(append(out, line...), '\n')
	}
	return out, nil
}
