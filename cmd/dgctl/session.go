package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
)

// newStore returns an empty client-side store. Each command builds its own
// view of the service graph; nothing is cached between invocations.
func newStore() *graphstore.Store {
	return graphstore.New(graphstore.NopRenderer{}, logger)
}

// hydrate loads the service's current graph, tags included, into store.
func hydrate(ctx context.Context, store *graphstore.Store) error {
	p, err := graphClient.Graph(ctx)
	if err != nil {
		return fmt.Errorf("fetching graph: %w", err)
	}
	snap, err := p.Snapshot()
	if err != nil {
		return fmt.Errorf("fetching graph: %w", err)
	}
	return store.Replace(snap)
}
