package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	query       string
	body        string
	contentType string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	return NewHTTPClient(srv.URL + "/"), srv
}

func TestHTTPClient_Scan(t *testing.T) {
	h := &testHandler{
		responseBody: `{"result":200,"V":[0,1,2],"E":[[0,1]],"neighbours":[[1],[0],[]],"PoisonNodes":[0,1],"Principals":[0]}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	p, err := c.Scan(context.Background(), &ScanRequest{P: 1, X: 1})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/scan" {
		t.Errorf("request = %s %s, want POST /scan", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}
	var reqBody map[string]int
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if reqBody["P"] != 1 || reqBody["X"] != 1 {
		t.Errorf("request body = %v", reqBody)
	}
	if len(p.PoisonNodes) != 2 || len(p.Principals) != 1 {
		t.Errorf("payload = %+v", p)
	}
}

func TestHTTPClient_ScanSendsZeroPrincipals(t *testing.T) {
	h := &testHandler{responseBody: `{"result":200,"V":[0],"PoisonNodes":[0]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.Scan(context.Background(), &ScanRequest{P: 1, X: 0}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	var reqBody map[string]int
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if x, ok := reqBody["X"]; !ok || x != 0 {
		t.Errorf("request body = %v, want explicit X 0", reqBody)
	}
}

func TestHTTPClient_NotFoundSentinel(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
	}{
		{"in body with 200", http.StatusOK},
		{"in body with 404", http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{
				statusCode:   tc.status,
				responseBody: `{"result":404,"message":"You have to generate the graph first."}`,
			}
			c, srv := newTestClient(h)
			defer srv.Close()

			_, err := c.Scan(context.Background(), &ScanRequest{P: 2})
			if !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("Scan() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestHTTPClient_ServiceError(t *testing.T) {
	h := &testHandler{responseBody: `{"result":500,"message":"generator exploded"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Add(context.Background(), &AddRequest{L: 5, K: 2})
	var se *model.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("Add() error = %v, want *ServiceError", err)
	}
	if se.Message != "generator exploded" {
		t.Errorf("Message = %q", se.Message)
	}
}

func TestHTTPClient_HTTPErrorIsTransport(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadGateway, responseBody: `{"error":"upstream down"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Delete(context.Background(), &DeleteRequest{Tag: model.TagInfected})
	if !model.IsTransport(err) {
		t.Fatalf("Delete() error = %v, want transport error", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error does not wrap *APIError: %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url)
	_, err := c.Graph(context.Background())
	if !model.IsTransport(err) {
		t.Fatalf("Graph() error = %v, want transport error", err)
	}
}

func TestHTTPClient_MalformedPayload(t *testing.T) {
	h := &testHandler{responseBody: `{"V": "nope"`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Generate(context.Background(), &GenerateRequest{N: 10, E: 2})
	if !model.IsProtocol(err) {
		t.Fatalf("Generate() error = %v, want protocol error", err)
	}
}

func TestHTTPClient_DeleteBody(t *testing.T) {
	h := &testHandler{responseBody: `{"result":200,"V":[],"E":[],"neighbours":[],"deletedNodes":3}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	p, err := c.Delete(context.Background(), &DeleteRequest{IDs: []model.NodeID{4, 5, 6}})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if h.body != `{"ids":[4,5,6]}` {
		t.Errorf("request body = %s", h.body)
	}
	if p.DeletedNodes == nil || *p.DeletedNodes != 3 {
		t.Errorf("DeletedNodes = %v, want 3", p.DeletedNodes)
	}
}

func TestHTTPClient_Events(t *testing.T) {
	h := &testHandler{responseBody: `{"events":[{"id":1,"topic":"graph.scanned","generation":2,"payload":{}}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	events, err := c.Events(context.Background(), 10)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if h.path != "/v1/events" || h.query != "limit=10" {
		t.Errorf("request = %s?%s", h.path, h.query)
	}
	if len(events) != 1 || events[0].Topic != "graph.scanned" || events[0].Generation != 2 {
		t.Errorf("events = %+v", events)
	}
}

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
}

func TestHTTPClient_Streams(t *testing.T) {
	h := &testHandler{responseBody: `{"streams":[{"run_id":"r1","action":"new","target":10,"sequence":4,"frames":4,"state":"running"}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	streams, err := c.Streams(context.Background(), true)
	if err != nil {
		t.Fatalf("Streams() error = %v", err)
	}
	if h.path != "/v1/streams" || h.query != "active=true" {
		t.Errorf("request = %s?%s", h.path, h.query)
	}
	if len(streams) != 1 || streams[0].RunID != "r1" || streams[0].Sequence != 4 {
		t.Errorf("streams = %+v", streams)
	}
}
