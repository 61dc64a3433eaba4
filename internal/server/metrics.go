package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dyngraph_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dyngraph_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds, streams excluded",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"route"})

	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dyngraph_streams_active",
		Help: "Construction streams currently open",
	})

	streamFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dyngraph_stream_frames_total",
		Help: "Data events written to construction streams",
	})

	streamOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dyngraph_streams_total",
		Help: "Finished construction streams by outcome",
	}, []string{"outcome"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dyngraph_events_total",
		Help: "Lifecycle events emitted by topic",
	}, []string{"topic"})

	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dyngraph_grpc_requests_total",
		Help: "gRPC requests by method and status code",
	}, []string{"method", "code"})

	graphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dyngraph_graph_nodes",
		Help: "Nodes in the service graph",
	})

	graphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dyngraph_graph_edges",
		Help: "Edges in the service graph",
	})
)

// statusRecorder captures the status code written by a handler. It forwards
// Flush so streaming handlers keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument counts requests to route and, unless streaming, times them.
func instrument(route string, streaming bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		if !streaming {
			httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	}
}
