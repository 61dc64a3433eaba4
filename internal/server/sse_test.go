package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/dyngraph/internal/events"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe(nil, 0)
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicGraphScanned, []byte(`{"seeds":2}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicGraphScanned || string(evt.Data) != `{"seeds":2}` || evt.ID != 1 {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe([]string{"graph.stream.*"}, 0)
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicGraphDeleted, []byte(`{}`))
	hub.broadcast(events.TopicStreamStarted, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicStreamStarted {
			t.Fatalf("got topic %q", evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe(nil, 0)
	hub.unsubscribe(client)

	hub.broadcast(events.TopicGraphAdded, []byte(`{}`))
	select {
	case <-client.ch:
		t.Fatal("unsubscribed client received an event")
	default:
	}
}

func TestSSEHub_Replay(t *testing.T) {
	hub := newSSEHub()
	for range sseReplaySize + 10 {
		hub.broadcast(events.TopicGraphAdded, []byte(`{}`))
	}
	hub.broadcast(events.TopicGraphScanned, []byte(`{}`))

	_, replay := hub.subscribe(nil, sseReplaySize+5)
	if len(replay) != 6 {
		t.Fatalf("replayed %d events, want 6", len(replay))
	}
	if replay[0].ID != sseReplaySize+6 || replay[5].Topic != events.TopicGraphScanned {
		t.Errorf("replay = %v..%v", replay[0], replay[5])
	}

	_, filtered := hub.subscribe([]string{events.TopicGraphScanned}, 1)
	if len(filtered) != 1 {
		t.Errorf("filtered replay = %d events, want 1", len(filtered))
	}

	// Events older than the window are gone.
	_, all := hub.subscribe(nil, 1)
	if len(all) != sseReplaySize {
		t.Errorf("replay window = %d, want %d", len(all), sseReplaySize)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern, topic string
		want           bool
	}{
		{"graph.scanned", "graph.scanned", true},
		{"graph.*", "graph.scanned", true},
		{"graph.*", "graph.stream.started", false},
		{"graph.>", "graph.stream.started", true},
		{"graph.>", "graph", false},
		{"graph.stream.*", "graph.stream.aborted", true},
		{"*.scanned", "graph.scanned", true},
		{"graph.scanned.extra", "graph.scanned", false},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

// serveEventStream holds a GET /v1/events/stream open while during runs and
// returns what it wrote.
func serveEventStream(t *testing.T, srv *GraphServer, url, lastID string, during func()) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", url, nil).WithContext(ctx)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.NewHTTPHandler().ServeHTTP(rec, req)
	}()

	// Give the handler time to register the subscription.
	time.Sleep(50 * time.Millisecond)
	during()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	return rec.Body.String()
}

func TestHandleEventStream_Lifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	body := serveEventStream(t, srv, "/v1/events/stream?topics=graph.generated,graph.scanned", "", func() {
		ctx := context.Background()
		if _, err := srv.Generate(ctx, 10, 2); err != nil {
			t.Error(err)
		}
		if _, err := srv.Add(ctx, 5, 2); err != nil {
			t.Error(err)
		}
		if _, err := srv.Scan(ctx, 2, 1); err != nil {
			t.Error(err)
		}
	})

	if !strings.Contains(body, "event:graph.generated\ndata:{\"nodes\":10,") {
		t.Errorf("missing generated event:\n%s", body)
	}
	if !strings.Contains(body, "event:graph.scanned") {
		t.Errorf("missing scanned event:\n%s", body)
	}
	if strings.Contains(body, "graph.added") {
		t.Errorf("filtered topic delivered:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.sseHub.broadcast("graph.added", []byte(`{"n":1}`))
	srv.sseHub.broadcast("graph.added", []byte(`{"n":2}`))
	srv.sseHub.broadcast("graph.added", []byte(`{"n":3}`))

	body := serveEventStream(t, srv, "/v1/events/stream", "1", func() {})

	if strings.Contains(body, `data:{"n":1}`) {
		t.Errorf("event 1 replayed:\n%s", body)
	}
	for _, want := range []string{"id:2\nevent:graph.added\ndata:{\"n\":2}\n\n", `data:{"n":3}`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}
