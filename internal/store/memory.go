package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// MemoryLog is an EventLog that keeps the most recent events in memory. It
// is what the server uses when no database is configured.
type MemoryLog struct {
	mu     sync.Mutex
	cap    int
	nextID int64
	events []*model.Event
}

var _ EventLog = (*MemoryLog)(nil)

// NewMemoryLog returns a log holding at most capacity events (oldest are
// dropped first). capacity <= 0 means 1000.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryLog{cap: capacity}
}

func (l *MemoryLog) RecordEvent(_ context.Context, e *model.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	e.ID = l.nextID
	e.CreatedAt = time.Now().UTC()
	cp := *e
	l.events = append(l.events, &cp)
	if over := len(l.events) - l.cap; over > 0 {
		l.events = slices.Delete(l.events, 0, over)
	}
	return nil
}

func (l *MemoryLog) ListEvents(_ context.Context, f EventFilter) ([]*model.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.Event
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := l.events[i]
		if f.Topic != "" && e.Topic != f.Topic {
			continue
		}
		if f.RunID != "" && e.RunID != f.RunID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (l *MemoryLog) Close() error { return nil }
