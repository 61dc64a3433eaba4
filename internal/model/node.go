package model

import (
	"fmt"
	"slices"
)

// NodeID identifies a node. It is unique and stable for the lifetime of a
// graph generation.
type NodeID int

// String returns the decimal form of the id.
func (id NodeID) String() string {
	return fmt.Sprintf("%d", int(id))
}

// EdgeID identifies an edge by its position in delivery order.
type EdgeID int

// Tag is a classification attached to a node by containment analysis.
// Tags are metadata, never topology.
type Tag string

const (
	TagInfected  Tag = "infected"
	TagPrincipal Tag = "principal"
)

// String returns the string representation of the tag.
func (t Tag) String() string {
	return string(t)
}

// IsValid checks whether the tag is a known value.
func (t Tag) IsValid() bool {
	switch t {
	case TagInfected, TagPrincipal:
		return true
	}
	return false
}

// Node is a vertex of the graph held by a GraphStore.
type Node struct {
	ID     NodeID `json:"id"`
	Label  string `json:"label"`
	Weight int    `json:"weight"` // neighbor count at emission; visual only
	Tags   []Tag  `json:"tags,omitempty"`
}

// NewNode returns a node with its label derived from the id.
func NewNode(id NodeID, weight int) Node {
	return Node{ID: id, Label: NodeLabel(id), Weight: weight}
}

// NodeLabel derives the display label of a node from its id.
func NodeLabel(id NodeID) string {
	return "Node " + id.String()
}

// HasTag reports whether the node carries the given tag.
func (n Node) HasTag(tag Tag) bool {
	return slices.Contains(n.Tags, tag)
}

// Edge is an ordered pair of node ids.
type Edge struct {
	ID     EdgeID `json:"id"`
	Source NodeID `json:"source"`
	Target NodeID `json:"target"`
}

// Touches reports whether id is one of the edge's endpoints.
func (e Edge) Touches(id NodeID) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite id.
func (e Edge) Other(id NodeID) NodeID {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// SortIDs sorts node ids ascending in place and returns the slice.
func SortIDs(ids []NodeID) []NodeID {
	slices.Sort(ids)
	return ids
}
