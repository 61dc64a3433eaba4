// Package construct consumes the server-sent construction stream and turns
// it into ordered node and edge deltas applied to a graph store.
//
// A Channel owns at most one active Run. Opening a new run cancels the
// previous one; a Replace run also resets the store, so anything the old run
// still had in flight is dropped by the store's generation guard.
package construct

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/idgen"
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// DefaultMinGrowth is the smallest number of nodes an Append run must add.
const DefaultMinGrowth = 50

// Mode selects whether a run starts from an empty graph or grows the
// existing one.
type Mode int

const (
	Replace Mode = iota
	Append
)

func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Append:
		return "append"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) action() client.StreamAction {
	if m == Append {
		return client.ActionAdd
	}
	return client.ActionNew
}

// Handlers receive the run's notifications. All callbacks run on the run's
// goroutine in arrival order; any of them may be nil. Only OnDone may open a
// new run on the same Channel.
type Handlers struct {
	OnDelta    func(Delta)
	OnProgress func(Progress)
	// OnDone fires exactly once, whatever the outcome.
	OnDone func(Result)
}

// Channel opens construction runs against one store.
type Channel struct {
	store     *graphstore.Store
	opener    client.StreamOpener
	logger    *slog.Logger
	minGrowth int

	// openMu serialises Open. mu guards active only and is never held
	// while waiting on a run, so handlers may call Active or Cancel.
	openMu sync.Mutex
	mu     sync.Mutex
	active *Run
}

// Option configures a Channel.
type Option func(*Channel)

// WithMinGrowth overrides DefaultMinGrowth.
func WithMinGrowth(n int) Option {
	return func(c *Channel) { c.minGrowth = n }
}

// WithLogger sets the channel's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// New creates a channel that applies streams opened through opener to store.
func New(store *graphstore.Store, opener client.StreamOpener, opts ...Option) *Channel {
	c := &Channel{
		store:     store,
		opener:    opener,
		logger:    slog.Default(),
		minGrowth: DefaultMinGrowth,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open validates the request, cancels any active run, and starts a new one.
// targetSize is the total node count the graph should reach. Validation
// failures are returned before any network I/O and leave the active run
// untouched.
func (c *Channel) Open(ctx context.Context, targetSize int, mode Mode, h Handlers) (*Run, error) {
	if err := c.validate(targetSize, mode); err != nil {
		return nil, err
	}
	id, err := idgen.Run()
	if err != nil {
		return nil, err
	}

	c.openMu.Lock()
	defer c.openMu.Unlock()
	if prev := c.Active(); prev != nil {
		prev.Cancel()
		<-prev.stopped
	}

	var gen uint64
	if mode == Replace {
		gen = c.store.Reset()
	} else {
		gen = c.store.Generation()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:         id,
		mode:       mode,
		target:     targetSize,
		generation: gen,
		store:      c.store,
		opener:     c.opener,
		logger:     c.logger.With("run_id", id, "mode", mode.String()),
		handlers:   h,
		cancelCtx:  cancel,
		stopped:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.mu.Lock()
	c.active = r
	c.mu.Unlock()
	r.logger.Info("construction run opened", "target", targetSize, "generation", gen)
	go r.run(runCtx)
	return r, nil
}

func (c *Channel) validate(targetSize int, mode Mode) error {
	switch mode {
	case Replace:
		return model.ValidatePositive("target_size", targetSize)
	case Append:
		return model.ValidateGrowth(targetSize, c.store.NodeCount(), c.minGrowth)
	}
	return model.NewValidationError("mode", "unknown mode %d", int(mode))
}

// Active returns the run most recently opened, or nil. The run may already
// have finished.
func (c *Channel) Active() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Cancel stops the active run, if any.
func (c *Channel) Cancel() {
	if r := c.Active(); r != nil {
		r.Cancel()
	}
}
