// Package events defines the lifecycle events the graph service emits and
// the publishers and subscribers that carry them.
package events

import (
	"context"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// Event topic constants
const (
	TopicGraphGenerated = "graph.generated"
	TopicGraphAdded     = "graph.added"
	TopicGraphScanned   = "graph.scanned"
	TopicGraphDeleted   = "graph.deleted"

	// Construction stream lifecycle.
	TopicStreamStarted   = "graph.stream.started"
	TopicStreamCompleted = "graph.stream.completed"
	TopicStreamAborted   = "graph.stream.aborted"

	// TopicAll matches every topic above (NATS wildcard).
	TopicAll = "graph.>"
)

// Event types

type GraphGenerated struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

type GraphAdded struct {
	Added int `json:"added"`
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

type GraphScanned struct {
	Seeds      int            `json:"seeds"`
	Infected   int            `json:"infected"`
	Principals []model.NodeID `json:"principals"`
}

type GraphDeleted struct {
	Removed int `json:"removed"`
	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
}

type StreamStarted struct {
	RunID  string `json:"run_id"`
	Action string `json:"action"`
	Target int    `json:"target"`
}

type StreamCompleted struct {
	RunID    string `json:"run_id"`
	Sequence int    `json:"sequence"`
	Edges    int    `json:"edges"`
}

// StreamAborted is emitted when a stream ends before reaching its target,
// usually because the client went away.
type StreamAborted struct {
	RunID    string `json:"run_id"`
	Sequence int    `json:"sequence"`
	Reason   string `json:"reason"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
