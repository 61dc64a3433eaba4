// Package presence keeps the roster of construction streams the service is
// serving, or has recently served, for GET /v1/streams.
//
// The server reports each stream's start, every frame it writes, and how it
// ended. A background reaper marks streams that stopped writing frames as
// stalled and forgets finished streams after a while.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// State is where a stream is in its lifecycle.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateStalled   State = "stalled" // set by the reaper
)

// Entry is one stream as reported by Roster.
type Entry struct {
	RunID        string    `json:"run_id"`
	Action       string    `json:"action"` // "new" or "add"
	Target       int       `json:"target"`
	Sequence     int       `json:"sequence"` // last frame id written; -1 before the first
	Frames       int64     `json:"frames"`
	State        State     `json:"state"`
	Reason       string    `json:"reason,omitempty"` // why an aborted stream ended
	StartedAt    time.Time `json:"started_at"`
	LastFrame    time.Time `json:"last_frame,omitempty"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
	IdleSecs     float64   `json:"idle_secs"`     // seconds since the last frame (or start)
	DurationSecs float64   `json:"duration_secs"` // running time so far, or total once ended
}

// ReaperConfig configures the background reaper.
type ReaperConfig struct {
	// StallThreshold is how long a running stream may go without writing a
	// frame before it is marked stalled. Default: 1 minute.
	StallThreshold time.Duration

	// EvictAfter is how long an ended or stalled stream stays in the roster.
	// Default: 10 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper runs. Default: 30 seconds.
	SweepInterval time.Duration

	// OnStall is called for each stream newly marked stalled, outside the lock.
	OnStall func(runID string)
}

// Tracker is the in-memory stream roster.
type Tracker struct {
	mu      sync.RWMutex
	streams map[string]*streamState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type streamState struct {
	action    string
	target    int
	sequence  int
	frames    int64
	state     State
	reason    string
	startedAt time.Time
	lastFrame time.Time
	endedAt   time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{streams: make(map[string]*streamState)}
}

// Start registers a stream. An empty run id is ignored.
func (t *Tracker) Start(runID, action string, target int) {
	if runID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams[runID] = &streamState{
		action:    action,
		target:    target,
		sequence:  -1,
		state:     StateRunning,
		startedAt: time.Now(),
	}
}

// Frame records that the stream wrote the frame with id seq. A stalled
// stream that writes again is running again.
func (t *Tracker) Frame(runID string, seq int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.streams[runID]
	if !ok {
		return
	}
	if st.state == StateStalled {
		slog.Info("presence: stream resumed", "run_id", runID)
		st.state = StateRunning
	}
	st.sequence = seq
	st.frames++
	st.lastFrame = time.Now()
}

// Finish records how the stream ended. A nil err means it reached its target.
func (t *Tracker) Finish(runID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.streams[runID]
	if !ok {
		return
	}
	st.endedAt = time.Now()
	if err != nil {
		st.state = StateAborted
		st.reason = err.Error()
		return
	}
	st.state = StateCompleted
}

// Active returns the number of streams currently running or stalled.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, st := range t.streams {
		if st.endedAt.IsZero() {
			n++
		}
	}
	return n
}

// Roster returns every tracked stream, most recently started first. With
// activeOnly set, ended streams are left out.
func (t *Tracker) Roster(activeOnly bool) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.streams))
	for runID, st := range t.streams {
		ended := !st.endedAt.IsZero()
		if activeOnly && ended {
			continue
		}
		last := st.lastFrame
		if last.IsZero() {
			last = st.startedAt
		}
		end := now
		if ended {
			end = st.endedAt
		}
		entries = append(entries, Entry{
			RunID:        runID,
			Action:       st.action,
			Target:       st.target,
			Sequence:     st.sequence,
			Frames:       st.frames,
			State:        st.state,
			Reason:       st.reason,
			StartedAt:    st.startedAt,
			LastFrame:    st.lastFrame,
			EndedAt:      st.endedAt,
			IdleSecs:     now.Sub(last).Seconds(),
			DurationSecs: end.Sub(st.startedAt).Seconds(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})
	return entries
}

// StartReaper launches the background reaper. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.StallThreshold == 0 {
		cfg.StallThreshold = time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 10 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"stall_threshold", cfg.StallThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := time.Now()
	var stalled []string

	t.mu.Lock()
	for runID, st := range t.streams {
		if !st.endedAt.IsZero() {
			if now.Sub(st.endedAt) > cfg.EvictAfter {
				delete(t.streams, runID)
			}
			continue
		}
		last := st.lastFrame
		if last.IsZero() {
			last = st.startedAt
		}
		idle := now.Sub(last)
		switch {
		case st.state == StateStalled && idle > cfg.EvictAfter:
			delete(t.streams, runID)
		case st.state == StateRunning && idle > cfg.StallThreshold:
			st.state = StateStalled
			stalled = append(stalled, runID)
		}
	}
	t.mu.Unlock()

	for _, runID := range stalled {
		slog.Info("presence: stream stalled", "run_id", runID, "threshold", cfg.StallThreshold)
		if cfg.OnStall != nil {
			cfg.OnStall(runID)
		}
	}
}
