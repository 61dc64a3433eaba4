package generator

import "github.com/alfredjeanlab/dyngraph/internal/model"

// unionFind tracks connected components over node ids. Ids index the slices
// directly; the graph never reuses an id, so the slices only grow.
type unionFind struct {
	parent []model.NodeID
	rank   []int
	size   []int
}

func (uf *unionFind) grow(n int) {
	for i := len(uf.parent); i < n; i++ {
		uf.parent = append(uf.parent, model.NodeID(i))
		uf.rank = append(uf.rank, 0)
		uf.size = append(uf.size, 1)
	}
}

func (uf *unionFind) find(id model.NodeID) model.NodeID {
	for uf.parent[id] != id {
		uf.parent[id] = uf.parent[uf.parent[id]]
		id = uf.parent[id]
	}
	return id
}

func (uf *unionFind) union(a, b model.NodeID) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	// Union by rank
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		ra, rb = rb, ra
	case uf.rank[ra] == uf.rank[rb]:
		uf.rank[ra]++
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

// componentSize returns the size of id's component.
func (uf *unionFind) componentSize(id model.NodeID) int {
	return uf.size[uf.find(id)]
}
