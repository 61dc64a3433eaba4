package graphstore

import "github.com/alfredjeanlab/dyngraph/internal/model"

// Renderer is the external visualization widget notified of every committed
// mutation. Calls are made while the store lock is held, so implementations
// must not call back into the Store.
type Renderer interface {
	ClearGraph()
	AddNode(n model.Node)
	AddEdge(e model.Edge)
	RemoveNode(id model.NodeID)
}

// NopRenderer discards all notifications.
type NopRenderer struct{}

func (NopRenderer) ClearGraph() {}

func (NopRenderer) AddNode(model.Node) {}

func (NopRenderer) AddEdge(model.Edge) {}

func (NopRenderer) RemoveNode(model.NodeID) {}
