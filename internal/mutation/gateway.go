// Package mutation sends delete and add requests to the service and replaces
// the store content with the graph the service returns.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// Mutator is the slice of the service client the gateway needs.
type Mutator interface {
	Delete(ctx context.Context, req *client.DeleteRequest) (*model.GraphPayload, error)
	Add(ctx context.Context, req *client.AddRequest) (*model.GraphPayload, error)
}

// Selector picks the nodes to delete. Exactly one field must be set: an
// explicit id list, every node carrying a tag, or a random sample of the
// given size.
type Selector struct {
	IDs    []model.NodeID
	Tag    model.Tag
	Random int
}

func (s Selector) validate() error {
	var ve model.ValidationError
	set := 0
	if len(s.IDs) > 0 {
		set++
	}
	if s.Tag != "" {
		set++
		if !s.Tag.IsValid() {
			ve.Add("tag", "unknown tag %q", s.Tag)
		}
	}
	if s.Random != 0 {
		set++
		if s.Random < 0 {
			ve.Add("random", "must be positive, got %d", s.Random)
		}
	}
	if set != 1 {
		ve.Add("selector", "exactly one of ids, tag or random must be set, got %d", set)
	}
	return ve.OrNil()
}

func (s Selector) request() *client.DeleteRequest {
	return &client.DeleteRequest{IDs: s.IDs, Tag: s.Tag, Random: s.Random}
}

// DeleteResult reports a deletion. Snapshot is the store content afterwards.
type DeleteResult struct {
	Removed  int
	Snapshot *model.Snapshot
}

// Gateway performs mutations against one store.
type Gateway struct {
	store   *graphstore.Store
	mutator Mutator
	logger  *slog.Logger
}

// New returns a gateway. A nil logger means slog.Default().
func New(store *graphstore.Store, mutator Mutator, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: store, mutator: mutator, logger: logger}
}

// Delete removes the selected nodes on the service. When the service removed
// anything, the store is replaced by the returned graph; when it removed
// nothing, the store is left exactly as it was.
func (g *Gateway) Delete(ctx context.Context, sel Selector) (*DeleteResult, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}
	p, err := g.mutator.Delete(ctx, sel.request())
	if err != nil {
		return nil, fmt.Errorf("delete nodes: %w", err)
	}

	removed := 0
	if p.DeletedNodes != nil {
		removed = *p.DeletedNodes
	} else if n := g.store.NodeCount() - len(p.V); n > 0 {
		removed = n
	}
	if removed == 0 {
		g.logger.Info("delete removed nothing", "selector", sel)
		return &DeleteResult{Snapshot: g.store.Snapshot()}, nil
	}

	snap, err := p.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("delete nodes: %w", err)
	}
	if g.prune(snap) {
		snap = g.store.Snapshot()
	} else if snap, err = g.replace(p); err != nil {
		return nil, fmt.Errorf("delete nodes: %w", err)
	}
	g.logger.Info("nodes deleted", "removed", removed, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return &DeleteResult{Removed: removed, Snapshot: snap}, nil
}

// AddNodes grows the service graph by count nodes with up to maxEdges edges
// each and replaces the store with the result.
func (g *Gateway) AddNodes(ctx context.Context, count, maxEdges int) (*model.Snapshot, error) {
	var ve model.ValidationError
	if count <= 0 {
		ve.Add("count", "must be positive, got %d", count)
	}
	if maxEdges < 0 {
		ve.Add("max_edges", "must not be negative, got %d", maxEdges)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	p, err := g.mutator.Add(ctx, &client.AddRequest{L: count, K: maxEdges})
	if err != nil {
		return nil, fmt.Errorf("add nodes: %w", err)
	}
	snap, err := g.replace(p)
	if err != nil {
		return nil, fmt.Errorf("add nodes: %w", err)
	}
	g.logger.Info("nodes added", "requested", count, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return snap, nil
}

func (g *Gateway) replace(p *model.GraphPayload) (*model.Snapshot, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := g.store.Replace(snap); err != nil {
		return nil, err
	}
	return g.store.Snapshot(), nil
}

// prune removes the nodes missing from snap when every surviving node and
// edge already matches the store, so the renderer sees only the removals.
// It reports false, changing nothing, when a full replace is needed.
func (g *Gateway) prune(snap *model.Snapshot) bool {
	keep := make(map[model.NodeID]model.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if !g.store.HasNode(n.ID) {
			return false
		}
		keep[n.ID] = n
	}
	var gone []model.NodeID
	for _, n := range g.store.Nodes() {
		want, ok := keep[n.ID]
		if !ok {
			gone = append(gone, n.ID)
			continue
		}
		if n.Weight != want.Weight {
			return false
		}
	}

	pending := make(map[[2]model.NodeID]int, len(snap.Edges))
	for _, e := range snap.Edges {
		pending[endpoints(e)]++
	}
	for _, e := range g.store.Edges() {
		if slices.ContainsFunc(gone, e.Touches) {
			continue
		}
		k := endpoints(e)
		if pending[k] == 0 {
			return false
		}
		pending[k]--
	}
	for _, n := range pending {
		if n != 0 {
			return false
		}
	}

	g.store.RemoveNodes(gone)
	g.store.SetTags(model.TagInfected, snap.Tagged(model.TagInfected))
	g.store.SetTags(model.TagPrincipal, snap.Tagged(model.TagPrincipal))
	return true
}

func endpoints(e model.Edge) [2]model.NodeID {
	if e.Source > e.Target {
		return [2]model.NodeID{e.Target, e.Source}
	}
	return [2]model.NodeID{e.Source, e.Target}
}
