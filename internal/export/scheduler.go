package export

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// SnapshotFunc returns the graph to export.
type SnapshotFunc func() (*model.Snapshot, error)

// Scheduler exports a graph to its destinations on a fixed interval.
type Scheduler struct {
	source       SnapshotFunc
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler; nothing runs until Start.
func NewScheduler(source SnapshotFunc, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       source,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start exports once immediately, then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight export.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.Once(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Once(ctx)
		}
	}
}

// Once runs a single export to every destination. Failures are logged;
// one failing destination does not stop the others.
func (s *Scheduler) Once(ctx context.Context) {
	snap, err := s.source()
	if err != nil {
		s.logger.Error("export snapshot failed", "error", err)
		return
	}
	var buf bytes.Buffer
	if err := WriteJSONL(snap, &buf); err != nil {
		s.logger.Error("export encode failed", "error", err)
		return
	}
	data := buf.Bytes()

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("export destination write failed", "destination", i, "error", err)
		}
	}
	s.logger.Info("export completed",
		"destinations", len(s.destinations), "nodes", len(snap.Nodes), "bytes", len(data))
}
