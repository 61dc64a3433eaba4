package export

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func staticSource(snap *model.Snapshot) SnapshotFunc {
	return func() (*model.Snapshot, error) { return snap, nil }
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(staticSource(testSnapshot()), []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Initial export plus at least one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}
	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(staticSource(&model.Snapshot{}), nil, time.Minute, nil)
	sched.Stop()
}

func TestSchedulerOnce_FailingDestination(t *testing.T) {
	bad := &mockDestination{err: errors.New("unavailable")}
	good := &mockDestination{}
	sched := NewScheduler(staticSource(testSnapshot()), []Destination{bad, good}, time.Minute, testLogger())

	sched.Once(context.Background())

	if bad.writes.Load() != 1 || good.writes.Load() != 1 {
		t.Fatalf("writes = %d/%d, want 1/1", bad.writes.Load(), good.writes.Load())
	}
}

func TestSchedulerOnce_SourceError(t *testing.T) {
	dest := &mockDestination{}
	failing := func() (*model.Snapshot, error) { return nil, errors.New("no graph") }
	sched := NewScheduler(failing, []Destination{dest}, time.Minute, testLogger())

	sched.Once(context.Background())

	if dest.writes.Load() != 0 {
		t.Fatalf("destination written %d times after source error", dest.writes.Load())
	}
}
