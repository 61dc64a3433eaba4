package construct

import "github.com/alfredjeanlab/dyngraph/internal/model"

// Delta is one incremental change carried by the construction stream.
type Delta interface {
	delta()
}

// NodeAdded announces a node. NeighborCount is the node's degree at the
// moment of emission and only sizes the node visually.
type NodeAdded struct {
	Node          model.Node
	NeighborCount int
}

// EdgeAdded announces an edge whose endpoints were both announced before.
type EdgeAdded struct {
	Edge model.Edge
}

// Progress reports how far the run is. Sequence is the stream's event id and
// Percent is floor(100*Sequence/Target), capped at 100.
type Progress struct {
	Sequence int
	Target   int
	Percent  int
}

func (NodeAdded) delta() {}
func (EdgeAdded) delta() {}
func (Progress) delta()  {}

// Percent computes the completion percentage of seq out of target.
func Percent(seq, target int) int {
	if target <= 0 || seq <= 0 {
		return 0
	}
	if seq >= target {
		return 100
	}
	return 100 * seq / target
}
