package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/alfredjeanlab/dyngraph/internal/events"
	"github.com/alfredjeanlab/dyngraph/internal/generator"
	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/store"
)

// newTestServer returns an unpaced server over a seeded empty graph.
func newTestServer(t *testing.T) (*GraphServer, *store.MemoryLog) {
	t.Helper()
	log := store.NewMemoryLog(0)
	srv := NewGraphServer(generator.New(generator.WithSeed(1)), log, nil,
		StreamOptions{MaxEdges: 2, Batch: 1}, nil)
	return srv, log
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) *model.GraphPayload {
	t.Helper()
	var p model.GraphPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return &p
}

// requireEvent asserts the newest recorded event has the given topic.
func requireEvent(t *testing.T, log *store.MemoryLog, topic string) *model.Event {
	t.Helper()
	evts, _ := log.ListEvents(context.Background(), store.EventFilter{Limit: 1})
	if len(evts) == 0 {
		t.Fatalf("no event recorded, want %s", topic)
	}
	if evts[0].Topic != topic {
		t.Fatalf("last event = %q, want %q", evts[0].Topic, topic)
	}
	return evts[0]
}

func TestHTTP_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.NewHTTPHandler(), "GET", "/v1/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestHTTP_Generate(t *testing.T) {
	srv, log := newTestServer(t)
	rec := doRequest(t, srv.NewHTTPHandler(), "POST", "/generate", map[string]int{"N": 30, "E": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	p := decodePayload(t, rec)
	if p.Result != model.ResultOK || len(p.V) != 30 || len(p.Neighbours) != 30 {
		t.Fatalf("payload = result %d, %d nodes", p.Result, len(p.V))
	}
	e := requireEvent(t, log, events.TopicGraphGenerated)
	if e.Generation != 1 || !strings.HasPrefix(e.RunID, "req-") {
		t.Errorf("event = %+v", e)
	}

	// A second generate replaces the graph.
	p = decodePayload(t, doRequest(t, srv.NewHTTPHandler(), "POST", "/generate", map[string]int{"N": 5, "E": 0}))
	if len(p.V) != 5 || len(p.E) != 0 {
		t.Errorf("regenerated graph = %d nodes %d edges", len(p.V), len(p.E))
	}
}

func TestHTTP_NotFoundSentinel(t *testing.T) {
	srv, log := newTestServer(t)
	h := srv.NewHTTPHandler()
	for _, tc := range []struct {
		path string
		body any
	}{
		{"/scan", map[string]int{"P": 2}},
		{"/add", map[string]int{"L": 5, "K": 1}},
		{"/delete", map[string]int{"random": 1}},
	} {
		rec := doRequest(t, h, "POST", tc.path, tc.body)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", tc.path, rec.Code)
		}
		p := decodePayload(t, rec)
		if !p.IsNotFound() || p.Message != msgNoGraph {
			t.Errorf("%s: payload = %+v", tc.path, p)
		}
	}
	if evts, _ := log.ListEvents(context.Background(), store.EventFilter{}); len(evts) != 0 {
		t.Errorf("recorded %d events for failed calls", len(evts))
	}
}

func TestHTTP_InvalidInput(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.NewHTTPHandler()
	if _, err := srv.Generate(context.Background(), 10, 1); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name, path string
		body       any
	}{
		{"generate zero nodes", "/generate", map[string]int{"N": 0, "E": 1}},
		{"generate negative edges", "/generate", map[string]int{"N": 3, "E": -1}},
		{"add zero", "/add", map[string]int{"L": 0, "K": 1}},
		{"scan zero seeds", "/scan", map[string]int{"P": 0}},
		{"scan negative principals", "/scan", map[string]int{"P": 1, "X": -1}},
		{"delete nothing", "/delete", map[string]any{}},
		{"delete two selectors", "/delete", map[string]any{"ids": []int{1}, "random": 2}},
		{"delete unknown tag", "/delete", map[string]any{"tag": "healthy"}},
		{"delete negative random", "/delete", map[string]any{"random": -3}},
		{"bad json", "/scan", "not an object"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, "POST", tc.path, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			p := decodePayload(t, rec)
			if p.Result != http.StatusBadRequest || p.Message == "" {
				t.Errorf("payload = %+v", p)
			}
		})
	}
}

func TestHTTP_ScanAndDeleteByTag(t *testing.T) {
	srv, log := newTestServer(t)
	h := srv.NewHTTPHandler()
	if _, err := srv.Generate(context.Background(), 40, 2); err != nil {
		t.Fatal(err)
	}

	p := decodePayload(t, doRequest(t, h, "POST", "/scan", map[string]int{"P": 3, "X": 2}))
	if len(p.PoisonNodes) == 0 || len(p.Principals) == 0 || len(p.Principals) > 2 {
		t.Fatalf("scan = %d infected, principals %v", len(p.PoisonNodes), p.Principals)
	}
	for _, id := range []model.NodeID{0, 1, 2} {
		if !slices.Contains(p.PoisonNodes, id) {
			t.Errorf("seed %d not infected", id)
		}
	}
	requireEvent(t, log, events.TopicGraphScanned)

	infected := len(p.PoisonNodes)
	p = decodePayload(t, doRequest(t, h, "POST", "/delete", map[string]string{"tag": "infected"}))
	if p.DeletedNodes == nil || *p.DeletedNodes != infected {
		t.Fatalf("deletedNodes = %v, want %d", p.DeletedNodes, infected)
	}
	if len(p.V) != 40-infected || len(p.PoisonNodes) != 0 {
		t.Errorf("after delete: %d nodes, %d still infected", len(p.V), len(p.PoisonNodes))
	}
	requireEvent(t, log, events.TopicGraphDeleted)
}

func TestHTTP_DeleteByIDs(t *testing.T) {
	srv, log := newTestServer(t)
	h := srv.NewHTTPHandler()
	if _, err := srv.Generate(context.Background(), 10, 2); err != nil {
		t.Fatal(err)
	}

	p := decodePayload(t, doRequest(t, h, "POST", "/delete", map[string]any{"ids": []int{3, 4, 99}}))
	if *p.DeletedNodes != 2 || slices.Contains(p.V, 3) || slices.Contains(p.V, 4) {
		t.Fatalf("delete = %d removed, V = %v", *p.DeletedNodes, p.V)
	}

	// Nothing matched: the graph is returned unchanged and no event recorded.
	before, _ := log.ListEvents(context.Background(), store.EventFilter{})
	p = decodePayload(t, doRequest(t, h, "POST", "/delete", map[string]any{"ids": []int{99}}))
	if *p.DeletedNodes != 0 || len(p.V) != 8 {
		t.Errorf("no-op delete = %d removed, %d nodes", *p.DeletedNodes, len(p.V))
	}
	after, _ := log.ListEvents(context.Background(), store.EventFilter{})
	if len(after) != len(before) {
		t.Errorf("no-op delete recorded an event")
	}
}

func TestHTTP_DeleteRandom(t *testing.T) {
	srv, _ := newTestServer(t)
	if _, err := srv.Generate(context.Background(), 20, 1); err != nil {
		t.Fatal(err)
	}
	p := decodePayload(t, doRequest(t, srv.NewHTTPHandler(), "POST", "/delete", map[string]int{"random": 5}))
	if *p.DeletedNodes != 5 || len(p.V) != 15 {
		t.Errorf("random delete = %d removed, %d left", *p.DeletedNodes, len(p.V))
	}
}

func TestHTTP_AddAndGraph(t *testing.T) {
	srv, log := newTestServer(t)
	h := srv.NewHTTPHandler()
	if _, err := srv.Generate(context.Background(), 10, 2); err != nil {
		t.Fatal(err)
	}

	p := decodePayload(t, doRequest(t, h, "POST", "/add", map[string]int{"L": 7, "K": 3}))
	if len(p.V) != 17 || p.V[16] != 16 {
		t.Fatalf("add = %v", p.V)
	}
	requireEvent(t, log, events.TopicGraphAdded)

	g := decodePayload(t, doRequest(t, h, "GET", "/v1/graph", nil))
	if !slices.Equal(g.V, p.V) || len(g.E) != len(p.E) {
		t.Errorf("GET /v1/graph differs from last add")
	}
}

func TestHTTP_ListEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.NewHTTPHandler()
	ctx := context.Background()
	srv.Generate(ctx, 10, 1) //nolint:errcheck
	srv.Scan(ctx, 1, 1)      //nolint:errcheck
	srv.Scan(ctx, 2, 1)      //nolint:errcheck

	var resp struct {
		Events []*model.Event `json:"events"`
	}
	rec := doRequest(t, h, "GET", "/v1/events?topic=graph.scanned&limit=1", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Topic != events.TopicGraphScanned {
		t.Fatalf("events = %+v", resp.Events)
	}
	var scanned events.GraphScanned
	if err := json.Unmarshal(resp.Events[0].Payload, &scanned); err != nil || scanned.Seeds != 2 {
		t.Errorf("payload = %s", resp.Events[0].Payload)
	}

	if rec := doRequest(t, h, "GET", "/v1/events?limit=x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestHTTP_ListEventsWithoutLog(t *testing.T) {
	srv := NewGraphServer(generator.New(), nil, nil, DefaultStreamOptions, nil)
	rec := doRequest(t, srv.NewHTTPHandler(), "GET", "/v1/events", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"events":[]`) {
		t.Errorf("events = %d %s", rec.Code, rec.Body)
	}
}

func TestHTTP_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.NewHTTPHandler()
	doRequest(t, h, "POST", "/generate", map[string]int{"N": 3, "E": 1})

	rec := doRequest(t, h, "GET", "/metrics", nil)
	body := rec.Body.String()
	for _, want := range []string{`dyngraph_http_requests_total{code="200",route="generate"}`, "dyngraph_graph_nodes 3"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestGraphSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	if _, err := srv.Generate(ctx, 12, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Scan(ctx, 1, 1); err != nil {
		t.Fatal(err)
	}

	snap, err := srv.GraphSnapshot()
	if err != nil {
		t.Fatalf("GraphSnapshot() error = %v", err)
	}
	p := srv.Snapshot()
	if snap.Generation != 1 || len(snap.Nodes) != len(p.V) || len(snap.Edges) != len(p.E) {
		t.Fatalf("snapshot = gen %d, %d nodes, %d edges", snap.Generation, len(snap.Nodes), len(snap.Edges))
	}
	if !slices.Equal(snap.Tagged(model.TagInfected), p.PoisonNodes) {
		t.Errorf("infected = %v, want %v", snap.Tagged(model.TagInfected), p.PoisonNodes)
	}
}
