package construct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// errCancelled stops frame handling midway once Cancel has been called.
var errCancelled = errors.New("run cancelled")

// Outcome is how a run terminated.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the terminal state of a run.
type Result struct {
	RunID        string
	Mode         Mode
	Target       int
	Generation   uint64
	Outcome      Outcome
	LastSequence int
	Applied      int // node and edge deltas committed to the store
	Err          error
}

// Run is one construction stream from open to termination.
type Run struct {
	id         string
	mode       Mode
	target     int
	generation uint64
	store      *graphstore.Store
	opener     client.StreamOpener
	logger     *slog.Logger
	handlers   Handlers
	cancelCtx  context.CancelFunc

	mu        sync.Mutex
	stream    client.Stream
	cancelled bool

	stopped chan struct{} // closed when no more deltas will be applied
	done    chan struct{} // closed after OnDone returns
	result  Result

	// apply state, owned by the run goroutine
	seen    map[model.NodeID]struct{}
	edges   int
	lastSeq int
	applied int
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// Mode returns the run's mode.
func (r *Run) Mode() Mode { return r.mode }

// Generation returns the store generation the run writes into.
func (r *Run) Generation() uint64 { return r.generation }

// Cancel closes the transport immediately. Deltas not yet applied are
// discarded; deltas already applied stay. Cancel on a finished run is a no-op.
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	s := r.stream
	r.mu.Unlock()
	r.cancelCtx()
	if s != nil {
		_ = s.Close()
	}
}

func (r *Run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Wait blocks until the run terminates and OnDone has returned.
func (r *Run) Wait() Result {
	<-r.done
	return r.result
}

// Done is closed once Wait would no longer block.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) run(ctx context.Context) {
	res := r.consume(ctx)
	res.RunID = r.id
	res.Mode = r.mode
	res.Target = r.target
	res.Generation = r.generation
	res.LastSequence = r.lastSeq
	res.Applied = r.applied
	r.result = res
	close(r.stopped)

	attrs := []any{"outcome", res.Outcome.String(), "last_seq", res.LastSequence, "applied", res.Applied}
	if res.Err != nil {
		r.logger.Warn("construction run ended", append(attrs, "error", res.Err)...)
	} else {
		r.logger.Info("construction run ended", attrs...)
	}

	if r.handlers.OnDone != nil {
		r.handlers.OnDone(res)
	}
	close(r.done)
}

func (r *Run) consume(ctx context.Context) Result {
	stream, err := r.opener.OpenStream(ctx, r.mode.action(), r.target)
	if err != nil {
		if r.isCancelled() {
			return Result{Outcome: Cancelled}
		}
		return Result{Outcome: Failed, Err: err}
	}
	defer stream.Close()

	r.mu.Lock()
	r.stream = stream
	cancelled := r.cancelled
	r.mu.Unlock()
	if cancelled {
		return Result{Outcome: Cancelled}
	}

	r.seen = make(map[model.NodeID]struct{})
	if r.mode == Append {
		for _, n := range r.store.Nodes() {
			r.seen[n.ID] = struct{}{}
		}
		r.edges = r.store.EdgeCount()
	}

	for {
		f, err := stream.Next()
		if r.isCancelled() || ctx.Err() != nil {
			return Result{Outcome: Cancelled}
		}
		if errors.Is(err, io.EOF) {
			return Result{Outcome: Failed, Err: &model.TransportError{
				Op:  "stream",
				Err: fmt.Errorf("closed at sequence %d of %d: %w", r.lastSeq, r.target, io.ErrUnexpectedEOF),
			}}
		}
		if err != nil {
			return Result{Outcome: Failed, Err: err}
		}

		done, err := r.handleFrame(f)
		if errors.Is(err, errCancelled) {
			return Result{Outcome: Cancelled}
		}
		if errors.Is(err, graphstore.ErrStaleGeneration) {
			r.logger.Debug("dropping stale delta", "generation", r.generation)
			return Result{Outcome: Cancelled}
		}
		if err != nil {
			return Result{Outcome: Failed, Err: err}
		}
		if done {
			return Result{Outcome: Completed}
		}
	}
}

// handleFrame applies one data event. It reports true once the target size
// has been reached.
func (r *Run) handleFrame(f client.Frame) (bool, error) {
	seq, err := strconv.Atoi(strings.TrimSpace(f.ID))
	if err != nil {
		return false, &model.ProtocolError{Reason: fmt.Sprintf("malformed event id %q", f.ID)}
	}
	if seq < r.lastSeq {
		return false, &model.ProtocolError{Reason: fmt.Sprintf("sequence went backwards from %d to %d", r.lastSeq, seq)}
	}

	var p model.GraphPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return false, &model.ProtocolError{Reason: fmt.Sprintf("malformed event data at sequence %d: %v", seq, err)}
	}
	if err := p.Err(); err != nil {
		return false, err
	}
	r.lastSeq = seq

	for i, id := range p.V {
		if _, ok := r.seen[id]; ok {
			continue
		}
		if r.isCancelled() {
			return false, errCancelled
		}
		n := model.NewNode(id, p.NeighbourCount(i))
		if err := r.store.ApplyNode(r.generation, n); err != nil {
			return false, err
		}
		r.seen[id] = struct{}{}
		r.applied++
		r.emit(NodeAdded{Node: n, NeighborCount: n.Weight})
	}
	for i := r.edges; i < len(p.E); i++ {
		if r.isCancelled() {
			return false, errCancelled
		}
		e := model.Edge{ID: model.EdgeID(i), Source: p.E[i][0], Target: p.E[i][1]}
		if err := r.store.ApplyEdge(r.generation, e); err != nil {
			return false, err
		}
		r.edges = i + 1
		r.applied++
		r.emit(EdgeAdded{Edge: e})
	}

	prog := Progress{Sequence: seq, Target: r.target, Percent: Percent(seq, r.target)}
	r.emit(prog)
	if r.handlers.OnProgress != nil {
		r.handlers.OnProgress(prog)
	}
	return seq >= r.target, nil
}

func (r *Run) emit(d Delta) {
	if r.handlers.OnDelta != nil {
		r.handlers.OnDelta(d)
	}
}
