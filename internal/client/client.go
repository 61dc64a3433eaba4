// Package client provides a transport-agnostic interface for the dyngraph
// service and an HTTP/SSE implementation of it.
package client

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/presence"
)

// GraphClient is the interface the construction channel, the containment
// scanner, the mutation gateway, and the CLI use to reach the service.
type GraphClient interface {
	StreamOpener

	// Analysis
	Scan(ctx context.Context, req *ScanRequest) (*model.GraphPayload, error)

	// Mutations
	Delete(ctx context.Context, req *DeleteRequest) (*model.GraphPayload, error)
	Add(ctx context.Context, req *AddRequest) (*model.GraphPayload, error)
	Generate(ctx context.Context, req *GenerateRequest) (*model.GraphPayload, error)

	// Reads
	Graph(ctx context.Context) (*model.GraphPayload, error)
	Events(ctx context.Context, limit int) ([]*model.Event, error)
	Streams(ctx context.Context, activeOnly bool) ([]presence.Entry, error)
	OpenEventStream(ctx context.Context, topics []string, lastEventID string) (Stream, error)
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// StreamOpener opens construction streams. It is the only part of the client
// the construction channel depends on.
type StreamOpener interface {
	OpenStream(ctx context.Context, action StreamAction, target int) (Stream, error)
}

// StreamAction selects how the service builds the streamed graph.
type StreamAction string

const (
	// ActionNew discards the service graph and builds a new one.
	ActionNew StreamAction = "new"
	// ActionAdd grows the existing service graph.
	ActionAdd StreamAction = "add"
)

// Path returns the stream URL path for a target size.
func (a StreamAction) Path(target int) string {
	return fmt.Sprintf("/api/%s/%d", a, target)
}

// ScanRequest asks for a containment scan. P is the number of seed nodes and
// X the number of principal nodes to identify.
type ScanRequest struct {
	P int `json:"P"`
	X int `json:"X"`
}

// DeleteRequest selects the nodes to remove. Exactly one field is set.
type DeleteRequest struct {
	IDs    []model.NodeID `json:"ids,omitempty"`
	Tag    model.Tag      `json:"tag,omitempty"`
	Random int            `json:"random,omitempty"`
}

// AddRequest grows the service graph by L nodes, each with up to K edges.
type AddRequest struct {
	L int `json:"L"`
	K int `json:"K"`
}

// GenerateRequest builds a fresh graph of N nodes in one shot, each with up
// to E edges.
type GenerateRequest struct {
	N int `json:"N"`
	E int `json:"E"`
}
