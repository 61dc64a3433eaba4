package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/store"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *GraphServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{action}/{n}", instrument("stream", true, s.handleStream))
	mux.HandleFunc("POST /generate", instrument("generate", false, s.handleGenerate))
	mux.HandleFunc("POST /add", instrument("add", false, s.handleAdd))
	mux.HandleFunc("POST /scan", instrument("scan", false, s.handleScan))
	mux.HandleFunc("POST /delete", instrument("delete", false, s.handleDelete))
	mux.HandleFunc("GET /v1/graph", instrument("graph", false, s.handleGetGraph))
	mux.HandleFunc("GET /v1/events", instrument("events", false, s.handleListEvents))
	mux.HandleFunc("GET /v1/events/stream", instrument("events_stream", true, s.handleEventStream))
	mux.HandleFunc("GET /v1/streams", instrument("streams", false, s.handleListStreams))
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// handleHealth handles GET /v1/health.
func (s *GraphServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGenerate handles POST /generate {"N": nodes, "E": maxEdges}.
func (s *GraphServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		N int `json:"N"`
		E int `json:"E"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.Generate(r.Context(), req.N, req.E)
	writePayload(w, p, err)
}

// handleAdd handles POST /add {"L": count, "K": maxEdges}.
func (s *GraphServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		L int `json:"L"`
		K int `json:"K"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.Add(r.Context(), req.L, req.K)
	writePayload(w, p, err)
}

// handleScan handles POST /scan {"P": seeds, "X": principals}. X defaults
// to 1 when absent.
func (s *GraphServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		P int  `json:"P"`
		X *int `json:"X"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	principals := 1
	if req.X != nil {
		principals = *req.X
	}
	p, err := s.Scan(r.Context(), req.P, principals)
	writePayload(w, p, err)
}

// handleDelete handles POST /delete with one of ids, tag, or random.
func (s *GraphServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []model.NodeID `json:"ids"`
		Tag    model.Tag      `json:"tag"`
		Random int            `json:"random"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.Delete(r.Context(), DeleteSelector{IDs: req.IDs, Tag: req.Tag, Random: req.Random})
	writePayload(w, p, err)
}

// handleGetGraph handles GET /v1/graph.
func (s *GraphServer) handleGetGraph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// handleListEvents handles GET /v1/events?topic=&run_id=&limit=.
func (s *GraphServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []*model.Event{}})
		return
	}
	q := r.URL.Query()
	filter := store.EventFilter{Topic: q.Get("topic"), RunID: q.Get("run_id")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	evts, err := s.events.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handleListStreams handles GET /v1/streams?active=true.
func (s *GraphServer) handleListStreams(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	writeJSON(w, http.StatusOK, map[string]any{"streams": s.streams.Roster(activeOnly)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writePayload writes a graph operation's outcome. A missing graph is the
// result:404 sentinel carried with HTTP 200, so clients branch on the payload
// rather than the status line.
func writePayload(w http.ResponseWriter, p *model.GraphPayload, err error) {
	var (
		inErr inputError
		nfErr notFoundError
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusOK, &model.GraphPayload{Result: model.ResultNotFound, Message: string(nfErr)})
	case errors.As(err, &inErr):
		writeFailure(w, http.StatusBadRequest, string(inErr))
	default:
		writeFailure(w, http.StatusInternalServerError, err.Error())
	}
}

// writeFailure writes a failure payload whose result mirrors the status.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"result": status, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
