// Package server is the graph service: it holds one generated graph and
// exposes construction streams, containment scans, and bulk mutations over
// HTTP, plus a gRPC health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"

	"github.com/alfredjeanlab/dyngraph/internal/events"
	"github.com/alfredjeanlab/dyngraph/internal/generator"
	"github.com/alfredjeanlab/dyngraph/internal/idgen"
	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/presence"
	"github.com/alfredjeanlab/dyngraph/internal/store"
)

const msgNoGraph = "You have to generate the graph first."

// StreamOptions controls how construction streams grow the graph.
type StreamOptions struct {
	MaxEdges int           // edges linked per new node, at most
	Interval time.Duration // minimum gap between events; 0 = unpaced
	Batch    int           // nodes added per event
}

// DefaultStreamOptions matches the service defaults in internal/config.
var DefaultStreamOptions = StreamOptions{MaxEdges: 3, Interval: 20 * time.Millisecond, Batch: 1}

// GraphServer owns the service graph. Every access to it goes through mu.
type GraphServer struct {
	mu         sync.Mutex
	graph      *generator.Graph
	generation uint64 // bumped whenever the graph is rebuilt from scratch

	events    store.EventLog
	publisher events.Publisher
	sseHub    *sseHub
	streams   *presence.Tracker
	health    *health.Server
	stream    StreamOptions
	logger    *slog.Logger
}

// NewGraphServer returns a server around g. A nil publisher disables NATS
// and a nil logger means slog.Default().
func NewGraphServer(g *generator.Graph, log store.EventLog, p events.Publisher, opts StreamOptions, logger *slog.Logger) *GraphServer {
	if p == nil {
		p = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Batch < 1 {
		opts.Batch = 1
	}
	return &GraphServer{
		graph:     g,
		events:    log,
		publisher: p,
		sseHub:    newSSEHub(),
		streams:   presence.New(),
		health:    health.NewServer(),
		stream:    opts,
		logger:    logger,
	}
}

// recordAndPublish persists an event to the audit log, publishes it to NATS
// and fans it out to SSE clients. All three are best-effort; failures are
// logged but do not block the caller.
func (s *GraphServer) recordAndPublish(ctx context.Context, topic, runID string, generation uint64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "run_id", runID, "error", err)
		return
	}
	if s.events != nil {
		if err := s.events.RecordEvent(ctx, &model.Event{
			Topic:      topic,
			RunID:      runID,
			Generation: generation,
			Payload:    payload,
		}); err != nil {
			s.logger.Warn("failed to record event", "topic", topic, "run_id", runID, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "run_id", runID, "error", err)
	}
	s.sseHub.broadcast(topic, payload)
	eventsPublished.WithLabelValues(topic).Inc()
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// notFoundError is reported as the result:404 sentinel payload.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }

// DeleteSelector picks the nodes a delete removes. Exactly one field is set.
type DeleteSelector struct {
	IDs    []model.NodeID
	Tag    model.Tag
	Random int
}

func (sel DeleteSelector) validate() error {
	set := 0
	if len(sel.IDs) > 0 {
		set++
	}
	if sel.Tag != "" {
		set++
		if !sel.Tag.IsValid() {
			return inputError(fmt.Sprintf("unknown tag %q", sel.Tag))
		}
	}
	if sel.Random != 0 {
		set++
		if sel.Random < 0 {
			return inputError("random must be positive")
		}
	}
	if set != 1 {
		return inputError("exactly one of ids, tag, random is required")
	}
	return nil
}

// Generate replaces the graph with a new one of nodes nodes.
func (s *GraphServer) Generate(ctx context.Context, nodes, maxEdges int) (*model.GraphPayload, error) {
	if nodes <= 0 {
		return nil, inputError("N must be positive")
	}
	if maxEdges < 0 {
		return nil, inputError("E must not be negative")
	}

	s.mu.Lock()
	s.graph.Reset()
	s.generation++
	s.graph.AddNodes(nodes, maxEdges)
	p, gen := s.payloadLocked(), s.generation
	s.mu.Unlock()

	s.recordAndPublish(ctx, events.TopicGraphGenerated, requestID(), gen,
		events.GraphGenerated{Nodes: len(p.V), Edges: len(p.E)})
	return p, nil
}

// Add grows the existing graph by count nodes in one step.
func (s *GraphServer) Add(ctx context.Context, count, maxEdges int) (*model.GraphPayload, error) {
	if count <= 0 {
		return nil, inputError("L must be positive")
	}
	if maxEdges < 0 {
		return nil, inputError("K must not be negative")
	}

	s.mu.Lock()
	if s.graph.Len() == 0 {
		s.mu.Unlock()
		return nil, notFoundError(msgNoGraph)
	}
	added := s.graph.AddNodes(count, maxEdges)
	p, gen := s.payloadLocked(), s.generation
	s.mu.Unlock()

	s.recordAndPublish(ctx, events.TopicGraphAdded, requestID(), gen,
		events.GraphAdded{Added: len(added), Nodes: len(p.V), Edges: len(p.E)})
	return p, nil
}

// Scan runs a containment scan and returns the graph tagged with its result.
func (s *GraphServer) Scan(ctx context.Context, seeds, principals int) (*model.GraphPayload, error) {
	if seeds <= 0 {
		return nil, inputError("P must be positive")
	}
	if principals < 0 {
		return nil, inputError("X must not be negative")
	}

	s.mu.Lock()
	res, err := s.graph.Scan(seeds, principals)
	if errors.Is(err, generator.ErrEmpty) {
		s.mu.Unlock()
		return nil, notFoundError(msgNoGraph)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	p, gen := s.payloadLocked(), s.generation
	s.mu.Unlock()

	s.recordAndPublish(ctx, events.TopicGraphScanned, requestID(), gen, events.GraphScanned{
		Seeds:      len(res.Seeds),
		Infected:   len(res.Infected),
		Principals: res.Principals,
	})
	return p, nil
}

// Delete removes the selected nodes. Ids that are not in the graph are
// ignored; the payload's deletedNodes says how many went.
func (s *GraphServer) Delete(ctx context.Context, sel DeleteSelector) (*model.GraphPayload, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.graph.Len() == 0 {
		s.mu.Unlock()
		return nil, notFoundError(msgNoGraph)
	}
	var ids []model.NodeID
	switch {
	case len(sel.IDs) > 0:
		ids = sel.IDs
	case sel.Tag != "":
		ids = s.graph.Select(sel.Tag)
	default:
		ids = s.graph.Sample(sel.Random)
	}
	removed := s.graph.Delete(ids)
	p, gen := s.payloadLocked(), s.generation
	s.mu.Unlock()

	p.DeletedNodes = &removed
	if removed > 0 {
		s.recordAndPublish(ctx, events.TopicGraphDeleted, requestID(), gen,
			events.GraphDeleted{Removed: removed, Nodes: len(p.V), Edges: len(p.E)})
	}
	return p, nil
}

// Snapshot returns the current graph.
func (s *GraphServer) Snapshot() *model.GraphPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadLocked()
}

// GraphSnapshot returns the current graph as a snapshot stamped with the
// server generation. It is the export scheduler's source.
func (s *GraphServer) GraphSnapshot() (*model.Snapshot, error) {
	s.mu.Lock()
	p, gen := s.payloadLocked(), s.generation
	s.mu.Unlock()

	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	snap.Generation = gen
	return snap, nil
}

// Streams returns the construction stream roster. The caller owns its
// reaper.
func (s *GraphServer) Streams() *presence.Tracker { return s.streams }

// Health returns the gRPC health service, so callers can flip it to
// NOT_SERVING while shutting down.
func (s *GraphServer) Health() *health.Server { return s.health }

func (s *GraphServer) payloadLocked() *model.GraphPayload {
	p := s.graph.Payload()
	graphNodes.Set(float64(len(p.V)))
	graphEdges.Set(float64(len(p.E)))
	return p
}

func requestID() string {
	id, err := idgen.Request()
	if err != nil {
		return ""
	}
	return id
}
