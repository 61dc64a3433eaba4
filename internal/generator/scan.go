package generator

import (
	"slices"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// ScanResult is the outcome of a containment scan.
type ScanResult struct {
	Seeds      []model.NodeID
	Infected   []model.NodeID
	Principals []model.NodeID
}

// Scan infects the seeds smallest node ids and spreads along edges: a seed
// infects its whole connected component. Principals are the seeds whose
// removal would save the most nodes, i.e. seeds that are alone in their
// component, largest component first (ties by smallest id). When fewer than
// principals such seeds exist the list is filled with the smallest remaining
// seeds. The result is remembered as the graph's tags.
func (g *Graph) Scan(seeds, principals int) (*ScanResult, error) {
	if len(g.order) == 0 {
		return nil, ErrEmpty
	}
	ids := model.SortIDs(slices.Clone(g.order))
	seeds = min(max(seeds, 1), len(ids))
	principals = min(max(principals, 0), seeds)
	res := &ScanResult{Seeds: ids[:seeds]}

	perRoot := make(map[model.NodeID]int)
	for _, s := range res.Seeds {
		perRoot[g.uf.find(s)]++
	}
	for _, id := range ids {
		if perRoot[g.uf.find(id)] > 0 {
			res.Infected = append(res.Infected, id)
		}
	}

	var sole []model.NodeID
	for _, s := range res.Seeds {
		if perRoot[g.uf.find(s)] == 1 {
			sole = append(sole, s)
		}
	}
	slices.SortStableFunc(sole, func(a, b model.NodeID) int {
		return g.uf.componentSize(b) - g.uf.componentSize(a)
	})
	chosen := slices.Clone(sole[:min(len(sole), principals)])
	for _, s := range res.Seeds {
		if len(chosen) >= principals {
			break
		}
		if !slices.Contains(chosen, s) {
			chosen = append(chosen, s)
		}
	}
	res.Principals = model.SortIDs(slices.Clone(chosen))

	g.infected = toSet(res.Infected)
	g.principals = toSet(res.Principals)
	return res, nil
}

// Tagged returns the ids carrying tag from the last scan, ascending.
func (g *Graph) Tagged(tag model.Tag) []model.NodeID {
	switch tag {
	case model.TagInfected:
		return sortedKeys(g.infected)
	case model.TagPrincipal:
		return sortedKeys(g.principals)
	}
	return nil
}

func toSet(ids []model.NodeID) map[model.NodeID]struct{} {
	set := make(map[model.NodeID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
