// Package store defines the persistence interface for the service's audit
// trail. The graph itself is never persisted; only lifecycle events are.
package store

import (
	"context"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// DefaultEventLimit caps ListEvents when the filter sets no limit.
const DefaultEventLimit = 100

// EventFilter narrows ListEvents. Zero fields match everything.
type EventFilter struct {
	Topic string
	RunID string
	Limit int
}

// EventLog records every event the service publishes.
type EventLog interface {
	// RecordEvent stores e and fills in its ID and CreatedAt.
	RecordEvent(ctx context.Context, e *model.Event) error
	// ListEvents returns matching events, newest first.
	ListEvents(ctx context.Context, filter EventFilter) ([]*model.Event, error)

	Close() error
}
