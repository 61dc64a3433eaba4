package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// sseReplaySize is how many recent lifecycle events are kept for
	// Last-Event-ID reconnection.
	sseReplaySize = 256

	sseKeepaliveInterval = 15 * time.Second
)

// sseEvent is one lifecycle event as sent to SSE clients.
type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseHub fans lifecycle events out to GET /v1/events/stream clients and
// keeps a short replay window.
type sseHub struct {
	mu      sync.Mutex
	nextID  uint64
	recent  []sseEvent // oldest first, at most sseReplaySize
	clients map[*sseClient]struct{}
}

type sseClient struct {
	topics []string // topic patterns; empty = all
	ch     chan sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast assigns the next event id and delivers to every matching client.
// A client whose buffer is full misses the event; it can catch up through
// Last-Event-ID.
func (h *sseHub) broadcast(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	evt := sseEvent{ID: h.nextID, Topic: topic, Data: data}
	if len(h.recent) == sseReplaySize {
		copy(h.recent, h.recent[1:])
		h.recent = h.recent[:sseReplaySize-1]
	}
	h.recent = append(h.recent, evt)

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

// subscribe registers a client and returns the buffered events after
// lastID that it should replay first.
func (h *sseHub) subscribe(topics []string, lastID uint64) (*sseClient, []sseEvent) {
	c := &sseClient{topics: topics, ch: make(chan sseEvent, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if lastID == 0 {
		return c, nil
	}
	var replay []sseEvent
	for _, evt := range h.recent {
		if evt.ID > lastID && c.matches(evt.Topic) {
			replay = append(replay, evt)
		}
	}
	return c, replay
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *sseClient) matches(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic NATS-style: "*" matches one
// segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, seg := range pat {
		if seg == ">" {
			return i < len(top)
		}
		if i >= len(top) || (seg != "*" && seg != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// handleEventStream handles GET /v1/events/stream?topics=a,b.
func (s *GraphServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	client, replay := s.sseHub.subscribe(topics, lastID)
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, evt := range replay {
		_ = writeFrame(w, strconv.FormatUint(evt.ID, 10), evt.Topic, evt.Data)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			if err := writeFrame(w, strconv.FormatUint(evt.ID, 10), evt.Topic, evt.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}
