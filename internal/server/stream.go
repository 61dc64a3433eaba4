package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/dyngraph/internal/events"
)

// Stream actions accepted by GET /api/{action}/{n}.
const (
	actionNew = "new"
	actionAdd = "add"
)

// handleStream handles GET /api/{action}/{n}: it grows the graph to n nodes
// and emits the accumulated graph after every batch as an SSE data event
// whose id is the node count so far. "new" starts from an empty graph; "add"
// grows the current one. The response ends once the target is reached.
func (s *GraphServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	action := r.PathValue("action")
	if action != actionNew && action != actionAdd {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown stream action %q", action))
		return
	}
	target, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || target <= 0 {
		writeError(w, http.StatusBadRequest, "target size must be a positive integer")
		return
	}

	ctx := r.Context()
	runID := requestID()

	s.mu.Lock()
	if action == actionNew {
		s.graph.Reset()
		s.generation++
	}
	gen := s.generation
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamsActive.Inc()
	defer streamsActive.Dec()
	s.recordAndPublish(ctx, events.TopicStreamStarted, runID, gen,
		events.StreamStarted{RunID: runID, Action: action, Target: target})
	s.logger.Info("stream started", "run_id", runID, "action", action, "target", target)
	s.streams.Start(runID, action, target)

	seq, edges, err := s.grow(ctx, w, flusher, runID, gen, target)
	s.streams.Finish(runID, err)
	bg := context.WithoutCancel(ctx)
	if err != nil {
		streamOutcomes.WithLabelValues("aborted").Inc()
		s.recordAndPublish(bg, events.TopicStreamAborted, runID, gen,
			events.StreamAborted{RunID: runID, Sequence: seq, Reason: err.Error()})
		s.logger.Info("stream aborted", "run_id", runID, "sequence", seq, "reason", err)
		return
	}
	streamOutcomes.WithLabelValues("completed").Inc()
	s.recordAndPublish(bg, events.TopicStreamCompleted, runID, gen,
		events.StreamCompleted{RunID: runID, Sequence: seq, Edges: edges})
	s.logger.Info("stream completed", "run_id", runID, "sequence", seq, "edges", edges)
}

// grow adds nodes in batches until the graph holds target nodes, writing one
// frame per batch. It stops early when the client goes away or another
// stream rebuilds the graph. It returns the last sequence and edge count
// written.
func (s *GraphServer) grow(ctx context.Context, w http.ResponseWriter, f http.Flusher, runID string, gen uint64, target int) (int, int, error) {
	limit := rate.Inf
	if s.stream.Interval > 0 {
		limit = rate.Every(s.stream.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	seq, edges := -1, 0
	for seq < target {
		if err := limiter.Wait(ctx); err != nil {
			return seq, edges, err
		}

		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return seq, edges, fmt.Errorf("superseded by a newer stream")
		}
		if n := min(s.stream.Batch, target-s.graph.Len()); n > 0 {
			s.graph.AddNodes(n, s.stream.MaxEdges)
		}
		p := s.payloadLocked()
		s.mu.Unlock()

		seq, edges = len(p.V), len(p.E)
		if err := writeFrame(w, strconv.Itoa(seq), "", p); err != nil {
			return seq, edges, err
		}
		f.Flush()
		streamFrames.Inc()
		s.streams.Frame(runID, seq)
	}
	return seq, edges, nil
}

// writeFrame writes one SSE event. event may be empty.
func writeFrame(w http.ResponseWriter, id, event string, data any) error {
	payload, ok := data.([]byte)
	if !ok {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = b
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id:%s\n", id); err != nil {
			return err
		}
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event:%s\n", event); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data:%s\n\n", payload)
	return err
}
